package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/solar-router/internal/model"
)

var (
	qualifyProfilePath string
	qualifyLeadID      string
	qualifyFlags       profileFlags
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify",
	Short: "Recommend, score and route a single lead",
	Long:  "Reads a customer profile from --profile (JSON file, or - for stdin) and/or profile flags, then prints the full qualification outcome as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile(qualifyProfilePath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		profile = profile.Merge(qualifyFlags.update(cmd.Flags()))

		env, err := initEngine(cmd.Context(), cfg, "qualify")
		if err != nil {
			return err
		}
		defer env.Close()

		leadID := qualifyLeadID
		if leadID == "" {
			leadID = uuid.NewString()
		}

		out := env.Engine.Qualify(cmd.Context(), leadID, profile)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode outcome")
		}
		return out.Err
	},
}

func init() {
	qualifyCmd.Flags().StringVar(&qualifyProfilePath, "profile", "", "path to a JSON customer profile (- for stdin)")
	qualifyCmd.Flags().StringVar(&qualifyLeadID, "lead-id", "", "lead identifier (default: random UUID)")
	qualifyFlags.register(qualifyCmd.Flags())
	rootCmd.AddCommand(qualifyCmd)
}

// loadProfile decodes a profile from path. An empty path yields an empty profile.
func loadProfile(path string, stdin io.Reader) (model.CustomerProfile, error) {
	var p model.CustomerProfile
	if path == "" {
		return p, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return p, eris.Wrapf(err, "read profile %s", path)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, eris.Wrap(err, "parse profile")
	}
	return p, nil
}

// profileFlags binds the customer profile fields to command flags.
type profileFlags struct {
	zip         string
	bill        float64
	ownership   string
	roofType    string
	roofAge     int
	roofSize    float64
	shading     float64
	orientation string
	timeline    string
	homeType    string
}

func (f *profileFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.zip, "zip", "", "five-digit ZIP code")
	fs.Float64Var(&f.bill, "bill", 0, "average monthly electric bill in dollars")
	fs.StringVar(&f.ownership, "ownership", "", "homeownership status: own, rent or unknown")
	fs.StringVar(&f.roofType, "roof-type", "", "roof material, e.g. asphalt_shingle")
	fs.IntVar(&f.roofAge, "roof-age", 0, "roof age in years")
	fs.Float64Var(&f.roofSize, "roof-size", 0, "usable roof area in square feet")
	fs.Float64Var(&f.shading, "shading", 0, "fraction of sunlight reaching the roof, (0, 1]")
	fs.StringVar(&f.orientation, "orientation", "", "roof orientation")
	fs.StringVar(&f.timeline, "timeline", "", "timeline urgency: immediately, 3_months, 6_months or researching")
	fs.StringVar(&f.homeType, "home-type", "", "home type")
}

// update returns the fields whose flags were set explicitly.
func (f *profileFlags) update(fs *pflag.FlagSet) model.ProfileUpdate {
	var u model.ProfileUpdate
	if fs.Changed("zip") {
		u.ZipCode = &f.zip
	}
	if fs.Changed("bill") {
		u.MonthlyBill = &f.bill
	}
	if fs.Changed("ownership") {
		h := model.Homeownership(f.ownership)
		u.Homeownership = &h
	}
	if fs.Changed("roof-type") {
		u.RoofType = &f.roofType
	}
	if fs.Changed("roof-age") {
		u.RoofAge = &f.roofAge
	}
	if fs.Changed("roof-size") {
		u.RoofSizeSqft = &f.roofSize
	}
	if fs.Changed("shading") {
		u.ShadingFactor = &f.shading
	}
	if fs.Changed("orientation") {
		u.Orientation = &f.orientation
	}
	if fs.Changed("timeline") {
		t := model.Timeline(f.timeline)
		u.Timeline = &t
	}
	if fs.Changed("home-type") {
		u.HomeType = &f.homeType
	}
	return u
}
