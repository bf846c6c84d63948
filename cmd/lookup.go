package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/sells-group/lightbox-cli/internal/geo"
	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

var (
	selectPath  string
	countryCode string

	reverseWKT      string
	reverseLat      float64
	reverseLon      float64
	reverseBuffer   float64
	reverseUnit     string
	reverseLimit    int
	commonOwnership bool
	adjacentGeoJSON bool
)

// printResponse writes the status line and the indented JSON body. With a
// selector only the matching part of the body is printed. A non-2xx status is
// returned as an error after printing so the process exits non-zero.
func printResponse(w io.Writer, resp *lightbox.Response, selector string, color bool) error {
	body := []byte(resp.Body)
	if selector != "" && gjson.ValidBytes(body) {
		body = []byte(gjson.GetBytes(body, selector).Raw)
		if len(body) == 0 {
			body = []byte("null")
		}
	}

	_, _ = fmt.Fprintf(w, "status_code: %d\n", resp.StatusCode)
	if gjson.ValidBytes(body) {
		out := pretty.Pretty(body)
		if color {
			out = pretty.Color(out, nil)
		}
		_, _ = w.Write(out)
	} else if len(body) > 0 {
		_, _ = w.Write(body)
		_, _ = fmt.Fprintln(w)
	}

	if !resp.OK() {
		return eris.Errorf("lightbox: request failed with status %d", resp.StatusCode)
	}
	return nil
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// lookupCmd builds a command that makes one API call and prints the response.
func lookupCmd(use, short string, args cobra.PositionalArgs, call func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient("lookup")
			if err != nil {
				return err
			}
			resp, err := call(cmd, client, args)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp, selectPath, stdoutIsTerminal())
		},
	}
}

var searchCmd = lookupCmd("search <address>", "Geocode a single address", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.SearchAddress(cmd.Context(), args[0])
	})

var autocompleteCmd = lookupCmd("autocomplete <partial-address>", "Suggest addresses for a partial address", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.Autocomplete(cmd.Context(), args[0], countryCode)
	})

var parcelCmd = lookupCmd("parcel <id>", "Fetch a parcel by LightBox ID", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.Parcel(cmd.Context(), countryCode, args[0])
	})

var zoningCmd = lookupCmd("zoning <parcel-id>", "Fetch zoning records for a parcel", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.Zoning(cmd.Context(), countryCode, args[0])
	})

var wetlandsCmd = lookupCmd("wetlands <parcel-id>", "Fetch wetlands intersecting a US parcel", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.Wetlands(cmd.Context(), args[0])
	})

var floodCmd = lookupCmd("flood <parcel-id>", "Fetch flood hazard areas intersecting a US parcel", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.FloodZones(cmd.Context(), args[0])
	})

var demographicsCmd = lookupCmd("demographics <parcel-id>", "Fetch demographics for a US parcel", cobra.ExactArgs(1),
	func(cmd *cobra.Command, c lightbox.Client, args []string) (*lightbox.Response, error) {
		return c.Demographics(cmd.Context(), args[0])
	})

var reverseCmd = lookupCmd("reverse", "Find addresses near a point or geometry", cobra.NoArgs,
	func(cmd *cobra.Command, c lightbox.Client, _ []string) (*lightbox.Response, error) {
		hasPoint := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
		req, err := reverseRequest(reverseWKT, hasPoint, reverseLat, reverseLon)
		if err != nil {
			return nil, err
		}
		return c.Reverse(cmd.Context(), req)
	})

// reverseRequest uses the --wkt geometry or builds a point from --lat/--lon.
func reverseRequest(wkt string, hasPoint bool, lat, lon float64) (lightbox.ReverseRequest, error) {
	switch reverseUnit {
	case lightbox.BufferMeters, lightbox.BufferKilometers, lightbox.BufferFeet, lightbox.BufferMiles:
	default:
		return lightbox.ReverseRequest{}, eris.Errorf("reverse: unsupported --buffer-unit %q (use m, km, ft or mi)", reverseUnit)
	}

	switch {
	case wkt != "":
		if _, err := geo.ParseWKT(wkt); err != nil {
			return lightbox.ReverseRequest{}, eris.Wrap(err, "reverse: invalid --wkt")
		}
	case hasPoint:
		p, err := geo.PointWKT(lat, lon)
		if err != nil {
			return lightbox.ReverseRequest{}, err
		}
		wkt = p
	default:
		return lightbox.ReverseRequest{}, eris.New("reverse: either --wkt or both --lat and --lon are required")
	}

	return lightbox.ReverseRequest{
		WKT:            wkt,
		BufferDistance: reverseBuffer,
		BufferUnit:     reverseUnit,
		Limit:          reverseLimit,
	}, nil
}

var adjacentCmd = &cobra.Command{
	Use:   "adjacent <parcel-id>",
	Short: "Fetch the parcels adjacent to a parcel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient("lookup")
		if err != nil {
			return err
		}
		resp, err := client.AdjacentParcels(cmd.Context(), countryCode, args[0], commonOwnership)
		if err != nil {
			return err
		}
		if !adjacentGeoJSON || !resp.OK() {
			return printResponse(cmd.OutOrStdout(), resp, selectPath, stdoutIsTerminal())
		}
		return writeAdjacentGeoJSON(cmd.OutOrStdout(), resp)
	},
}

func writeAdjacentGeoJSON(w io.Writer, resp *lightbox.Response) error {
	var body lightbox.AdjacentParcelsResponse
	if err := resp.Decode(&body); err != nil {
		return eris.Wrap(err, "adjacent: decode parcels")
	}
	fc, err := geo.AdjacentToGeoJSON(body.Parcels)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(fc), "adjacent: encode geojson")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&selectPath, "select", "", "print only this path of the JSON response (e.g. addresses.0.location)")

	for _, c := range []*cobra.Command{autocompleteCmd, parcelCmd, zoningCmd, adjacentCmd} {
		c.Flags().StringVar(&countryCode, "country", "US", "ISO country code")
	}

	reverseCmd.Flags().StringVar(&reverseWKT, "wkt", "", "WKT geometry to search around")
	reverseCmd.Flags().Float64Var(&reverseLat, "lat", 0, "latitude of the search point")
	reverseCmd.Flags().Float64Var(&reverseLon, "lon", 0, "longitude of the search point")
	reverseCmd.Flags().Float64Var(&reverseBuffer, "buffer-distance", 0, "buffer around the geometry")
	reverseCmd.Flags().StringVar(&reverseUnit, "buffer-unit", lightbox.BufferMeters, "buffer unit (m, km, ft, mi)")
	reverseCmd.Flags().IntVar(&reverseLimit, "limit", 0, "maximum number of addresses (0 uses the API default)")

	adjacentCmd.Flags().BoolVar(&commonOwnership, "common-ownership", false, "only parcels sharing the owner")
	adjacentCmd.Flags().BoolVar(&adjacentGeoJSON, "geojson", false, "print the parcels as a GeoJSON FeatureCollection")

	rootCmd.AddCommand(searchCmd, autocompleteCmd, reverseCmd, parcelCmd, zoningCmd,
		wetlandsCmd, floodCmd, demographicsCmd, adjacentCmd)
}
