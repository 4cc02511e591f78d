package main

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"idcard/internal/card"
	"idcard/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type cardFlags struct {
	student card.Student
	from    string
}

func (f *cardFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.from, "from", "", "Read the student record from a JSON file")
	fl.StringVar(&f.student.FullName, "name", "", "Full name")
	fl.StringVar(&f.student.Sex, "sex", "", "Sex")
	fl.StringVar(&f.student.DOB, "dob", "", "Date of birth")
	fl.StringVar(&f.student.BloodGroup, "blood-group", "", "Blood group")
	fl.StringVar(&f.student.Course, "course", "", "Course")
	fl.StringVar(&f.student.RegNo, "reg-no", "", "Registration number")
	fl.StringVar(&f.student.Level, "level", "", "Level")
	fl.StringVar(&f.student.PhotoPath, "photo", "", "Passport photo (PNG/JPEG)")
	fl.StringVar(&f.student.SignaturePath, "signature", "", "Signature image (PNG/JPEG)")
}

// record merges the JSON file (if any) with explicitly set flags.
func (f *cardFlags) record(cmd *cobra.Command) (*card.Student, error) {
	s := f.student
	if f.from == "" {
		return &s, nil
	}
	data, err := os.ReadFile(f.from)
	if err != nil {
		return nil, err
	}
	var fromFile card.Student
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.from, err)
	}
	overrides := map[string]*string{
		"name": &fromFile.FullName, "sex": &fromFile.Sex, "dob": &fromFile.DOB,
		"blood-group": &fromFile.BloodGroup, "course": &fromFile.Course, "reg-no": &fromFile.RegNo,
		"level": &fromFile.Level, "photo": &fromFile.PhotoPath, "signature": &fromFile.SignaturePath,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	return &fromFile, nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "idcard",
		Short:         "Compose student identity cards",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRenderCmd(stdout, stderr), newPayloadCmd(stdout))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "idcard %s\n", version)
		},
	})
	return root
}

func newRenderCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		flags    cardFlags
		format   string
		out      string
		logo     string
		school   string
		address  string
		fontPath string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a card as PNG, preview PNG or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewWithOutput(stderr, logLevel, "dev")
			s, err := flags.record(cmd)
			if err != nil {
				return err
			}

			inst := card.DefaultInstitution()
			inst.LogoPath = logo
			if school != "" {
				inst.Name = school
			}
			if address != "" {
				inst.Address = address
			}
			fonts := card.LoadFontSet(append([]string{fontPath}, card.DefaultFontPaths...), log)
			engine := card.NewEngine(fonts, inst, card.WithLogger(log))

			img, err := engine.Compose(s)
			if err != nil {
				return err
			}

			w := stdout
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := writeCard(w, img, format, s); err != nil {
				return err
			}
			if out != "-" {
				log.WithFields(logrus.Fields{"file": out, "format": format}).Info("card written")
			}
			return nil
		},
	}
	flags.register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "png", "Output format: png, preview or pdf")
	fl.StringVarP(&out, "out", "o", "card.png", `Output file, "-" for stdout`)
	fl.StringVar(&logo, "logo", card.DefaultInstitution().LogoPath, "Institution logo")
	fl.StringVar(&school, "school", "", "Institution name")
	fl.StringVar(&address, "address", "", "Institution address")
	fl.StringVar(&fontPath, "font", "", "TrueType font to try before the system fonts")
	fl.StringVar(&logLevel, "log-level", "warn", "Log level")
	return cmd
}

func writeCard(w io.Writer, img image.Image, format string, s *card.Student) error {
	switch strings.ToLower(format) {
	case "png":
		return card.EncodePNG(w, img)
	case "preview":
		return card.EncodePNG(w, card.Preview(img))
	case "pdf":
		return card.WritePDF(w, img, strings.TrimSpace(s.FullName+" "+s.RegNo))
	}
	return fmt.Errorf("unknown format %q (want png, preview or pdf)", format)
}

func newPayloadCmd(stdout io.Writer) *cobra.Command {
	var flags cardFlags
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print the text encoded in the card's QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.record(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, card.BuildQRText(s))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
