package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"task-wizard/internal/geocode"
)

// GeocodeCommand groups the resolver helpers.
func GeocodeCommand(o *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Query the coordinate resolver",
	}
	cmd.AddCommand(reverseCommand(o), searchCommand(o))
	return cmd
}

func reverseCommand(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <lat> <lng>",
		Short: "Resolve a coordinate to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[1])
			}
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}

			addr, err := newResolver(cfg, nil).Reverse(cmd.Context(), lat, lng)
			if err != nil {
				return fmt.Errorf("reverse %s: %w", geocode.FormatCoordinate(lat, lng), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Name:    %s\nDetails: %s\n", addr.Name, addr.Details)
			return nil
		},
	}
}

func searchCommand(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Resolve a free text query to a coordinate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			c, found, err := newResolver(cfg, nil).Forward(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("search %q: %w", query, err)
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "No result for %q\n", query)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), geocode.FormatCoordinate(c.Lat, c.Lng))
			return nil
		},
	}
}
