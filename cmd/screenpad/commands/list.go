package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/native/x11"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capturable targets",
	Long:  `Enumerate the windows and screens that can be captured, with the ids clients use to select them.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := display.Open(x11.New())
	if ctx == nil {
		return fmt.Errorf("could not open the X11 display, is $DISPLAY set?")
	}
	defer ctx.Close()

	capturables, cerr := ctx.Capturables()
	if cerr != nil {
		return fmt.Errorf("enumeration failed: %w", cerr)
	}
	defer func() {
		for _, target := range capturables {
			target.Close()
		}
	}()

	if len(capturables) == 0 {
		fmt.Println("No capturable targets found.")
		return nil
	}
	for i, target := range capturables {
		fmt.Printf("%3d  %s\n", i, target.Name())
	}
	return nil
}
