package refdata

// defaultTables mirrors the tables the operator UI ships with.
func defaultTables() map[Kind][]Option {
	return map[Kind][]Option{
		KindTaskType: {
			{Value: "express", Label: "ส่งด่วน"},
			{Value: "parcel", Label: "งานพัสดุ"},
			{Value: "document", Label: "รับส่งเอกสาร"},
		},
		KindLocation: {
			{Value: "office-bkk", Label: "สำนักงานใหญ่ กรุงเทพ"},
			{Value: "warehouse-sm", Label: "คลังสินค้า สมุทรปราการ"},
			{Value: "branch-cm", Label: "สาขาเชียงใหม่"},
			{Value: "branch-pk", Label: "สาขาภูเก็ต"},
		},
		KindContact: {
			{Value: "somchai", Label: "สมชาย วงศ์สว่าง", Phone: "081-234-5678", Email: "somchai@company.com"},
			{Value: "suda", Label: "สุดา รักสวย", Phone: "089-876-5432", Email: "suda@company.com"},
			{Value: "prasit", Label: "ประสิทธิ์ ดีมาก", Phone: "062-345-6789", Email: "prasit@company.com"},
		},
		KindParcelType: {
			{Value: "document", Label: "เอกสาร"},
			{Value: "small-box", Label: "กล่องเล็ก"},
			{Value: "medium-box", Label: "กล่องกลาง"},
			{Value: "large-box", Label: "กล่องใหญ่"},
			{Value: "fragile", Label: "สินค้าแตกหักง่าย"},
		},
		KindOrganizationType: {
			{Value: "org-user", Label: "Organization User"},
			{Value: "key-contact", Label: "Key Contact"},
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultTables())
	if err != nil {
		// the built-in tables are static; a failure here is a programming error
		panic(err)
	}
	return c
}
