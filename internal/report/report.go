// Package report renders the final report of a probe run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/probe"
	"github.com/seagrayinc/u2fhid-tester/internal/u2fhid"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Write renders r to w in the given format.
func Write(w io.Writer, format string, r *probe.Report) error {
	switch format {
	case FormatJSON:
		return JSON(w, r)
	case FormatText, "":
		return Text(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Styles used by the text report.
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Device  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the styles for a renderer writing to w. Colors are
// dropped when w is not a terminal.
func DefaultStyles(w io.Writer) Styles {
	re := lipgloss.NewRenderer(w)
	return Styles{
		Title:   re.NewStyle().Bold(true),
		Heading: re.NewStyle().Bold(true),
		Device:  re.NewStyle(),
		Muted:   re.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}),
		Success: re.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}),
		Error:   re.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87")),
	}
}

type section struct {
	heading string
	note    string
	style   lipgloss.Style
	devices []hid.Info
}

// Text writes the human readable report.
func Text(w io.Writer, r *probe.Report) error {
	s := DefaultStyles(w)

	sections := []section{
		{
			heading: "%d device(s) reported ERROR for bad GET_VERSION request:",
			note:    "This is correct behaviour.",
			style:   s.Success,
			devices: r.Buckets.BadRequestRejected,
		},
		{
			heading: "%d device(s) reported OK for bad GET_VERSION request:",
			devices: r.Buckets.BadRequestAccepted,
		},
		{
			heading: "%d device(s) only accepted bad GET_VERSION request:",
			note:    "These keys are defective!",
			style:   s.Error,
			devices: r.Buckets.BadRequestOnlyAccepted,
		},
		{
			heading: "%d device(s) don't support FIDOv1:",
			devices: r.Buckets.NoFIDO1,
		},
	}

	var b strings.Builder
	b.WriteString(s.Title.Render("Final report:"))
	b.WriteString("\n\n")
	for _, sec := range sections {
		b.WriteString(s.Heading.Render(fmt.Sprintf(sec.heading, len(sec.devices))))
		b.WriteString("\n")
		if len(sec.devices) > 0 && sec.note != "" {
			b.WriteString(sec.style.Render(sec.note))
			b.WriteString("\n")
		}
		for _, d := range sec.devices {
			b.WriteString(s.Device.Render("- " + d.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(s.Heading.Render(fmt.Sprintf("%d device(s) reported some other issue", r.Inconclusive())))
	b.WriteString("\n")
	for _, res := range r.Results {
		if res.Bucket != probe.BucketInconclusive {
			continue
		}
		reason := "no verdict"
		if res.SkipReason != nil {
			reason = res.SkipReason.Error()
		}
		b.WriteString(s.Device.Render("- " + res.Device.String()))
		b.WriteString(s.Muted.Render(" (" + reason + ")"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type document struct {
	Probed       int              `json:"probed"`
	Inconclusive int              `json:"inconclusive"`
	Buckets      map[string][]int `json:"buckets"`
	Devices      []device         `json:"devices"`
}

type device struct {
	Path       string     `json:"path"`
	VendorID   string     `json:"vendor_id"`
	ProductID  string     `json:"product_id"`
	Name       string     `json:"name,omitempty"`
	State      string     `json:"state"`
	Bucket     string     `json:"bucket"`
	SkipReason string     `json:"skip_reason,omitempty"`
	FIDO1      bool       `json:"fido1_supported"`
	ChannelID  string     `json:"channel_id,omitempty"`
	Init       *initInfo  `json:"init,omitempty"`
	WellFormed string     `json:"well_formed,omitempty"`
	Malformed  string     `json:"malformed,omitempty"`
	Exchanges  []exchange `json:"exchanges,omitempty"`
}

type initInfo struct {
	ProtocolVersion int    `json:"protocol_version"`
	DeviceVersion   string `json:"device_version"`
	Capabilities    int    `json:"capabilities"`
}

type exchange struct {
	Direction string `json:"direction"`
	Report    string `json:"report"`
	Frame     string `json:"frame,omitempty"`
}

// JSON writes the report as a single indented JSON document. Buckets hold
// indexes into devices.
func JSON(w io.Writer, r *probe.Report) error {
	doc := document{
		Probed:       r.Probed,
		Inconclusive: r.Inconclusive(),
		Buckets:      map[string][]int{},
		Devices:      make([]device, 0, len(r.Results)),
	}
	for i, res := range r.Results {
		doc.Devices = append(doc.Devices, newDevice(res))
		if res.Bucket != probe.BucketInconclusive {
			name := res.Bucket.String()
			doc.Buckets[name] = append(doc.Buckets[name], i)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func newDevice(res *probe.Result) device {
	d := device{
		Path:      res.Device.Path,
		VendorID:  fmt.Sprintf("%04x", res.Device.VendorID),
		ProductID: fmt.Sprintf("%04x", res.Device.ProductID),
		Name:      res.Device.Name(),
		State:     res.State.String(),
		Bucket:    res.Bucket.String(),
		FIDO1:     res.FIDO1Supported,
	}
	if res.SkipReason != nil {
		d.SkipReason = res.SkipReason.Error()
	}
	if res.ChannelID != 0 {
		d.ChannelID = fmt.Sprintf("%08x", res.ChannelID)
	}
	if ir := res.Init; ir != nil {
		d.Init = &initInfo{
			ProtocolVersion: int(ir.ProtocolVersion),
			DeviceVersion:   fmt.Sprintf("%d.%d.%d", ir.DeviceVersionMajor, ir.DeviceVersionMinor, ir.DeviceVersionBuild),
			Capabilities:    int(ir.Capabilities),
		}
	}
	if res.WellFormed.Kind != probe.OutcomeNone {
		d.WellFormed = res.WellFormed.String()
	}
	if res.Malformed.Kind != probe.OutcomeNone {
		d.Malformed = res.Malformed.String()
	}
	for _, ex := range res.Exchanges {
		e := exchange{Direction: ex.Direction.String(), Report: u2fhid.EncodeReportToString(ex.Report)}
		if ex.Frame != nil {
			e.Frame = ex.Frame.String()
		}
		d.Exchanges = append(d.Exchanges, e)
	}
	return d
}
