package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/evdevkm/internal/input"
	"github.com/bnema/evdevkm/internal/ui"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	listAll     bool
	listPattern string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List input devices",
	Long:  `List the event devices that can be switched, with their persistent aliases.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := input.List(listPattern)
		if err != nil {
			return err
		}
		if !listAll {
			devices = input.Switchable(devices)
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderDeviceTable(devices))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include the virtual devices created by evdevkm")
	listCmd.Flags().StringVar(&listPattern, "pattern", input.DefaultPattern, "glob of event devices to inspect")
}

func renderDeviceTable(devices []input.DeviceInfo) string {
	var output strings.Builder

	output.WriteString(ui.FormatAppHeader("DEVICES", fmt.Sprintf("%d found", len(devices))))
	output.WriteString("\n\n")

	if len(devices) == 0 {
		output.WriteString(ui.SubtleStyle.Render("No input devices found. Reading /dev/input usually requires root or the input group."))
		return output.String()
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		alias := d.Symlink
		if alias == "" {
			alias = "-"
		}
		name := d.Name
		if d.Virtual {
			name = ui.IconVirtual + " " + name
		}
		rows = append(rows, []string{d.Path, name, d.Kind.String(), alias})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return ui.TableHeaderStyle
			case row < 0 || row >= len(devices):
				return ui.TableCellStyle
			case devices[row].Virtual:
				return ui.TableMutedCellStyle
			case col == 2 && devices[row].Kind == input.KindOther:
				return ui.TableMutedCellStyle
			default:
				return ui.TableCellStyle
			}
		}).
		Headers("PATH", "NAME", "KIND", "ALIAS").
		Rows(rows...)

	output.WriteString(t.String())
	output.WriteString("\n\n")
	output.WriteString(strings.Join([]string{
		ui.InfoStyle.Render("Usage:"),
		"  " + ui.ControlKeyStyle.Render("evdevkm <path>...") + " - Switch the given devices",
		"  " + ui.ControlKeyStyle.Render("evdevkm setup") + " - Choose devices interactively",
	}, "\n"))
	return output.String()
}
