package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingertrain/internal/config"
	"github.com/ayusman/fingertrain/internal/detector"
	"github.com/ayusman/fingertrain/internal/gesture"
)

var (
	classifyThreshold float64
	classifyJSON      bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE",
	Short: "Count extended fingers in recorded hand landmarks",
	Long: `Reads a {"hands":[...]} landmark document, as written by the landmark
service, and prints the finger count for each hand side. Use "-" to read
from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", config.DefaultThreshold, "Extension threshold in degrees")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print counts as JSON")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open landmarks: %w", err)
		}
		defer f.Close()
		r = f
	}

	counts, err := classifyHands(r, classifyThreshold)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if classifyJSON {
		return json.NewEncoder(out).Encode(counts)
	}
	fmt.Fprintf(out, "Left:  %d\n", counts.Left)
	fmt.Fprintf(out, "Right: %d\n", counts.Right)
	return nil
}

func classifyHands(r io.Reader, threshold float64) (gesture.DigitCounts, error) {
	hands, err := detector.DecodeHands(r)
	if err != nil {
		return gesture.DigitCounts{}, err
	}
	var counts gesture.DigitCounts
	counts.Apply(gesture.Classify(hands, threshold))
	return counts, nil
}
