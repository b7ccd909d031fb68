package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
)

// HashResult is the JSON payload of hash.
type HashResult struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Bytes       int                     `json:"bytes"`
	Normalized  bool                    `json:"normalized"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		file string
		nfc  bool
	)

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the cache fingerprint of a text",
		Long: `Print the SHA-256 fingerprint under which a text is cached.

The text is read from --file or stdin and hashed byte for byte, including
any trailing newline. With --nfc the text is NFC-normalized first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(rootOpts, file, nfc, cmd)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "text file to hash (default stdin)")
	cmd.Flags().BoolVar(&nfc, "nfc", false, "NFC-normalize the text before hashing")

	return cmd
}

func runHash(opts *RootOptions, file string, nfc bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	text, err := readInput(cmd, file)
	if err != nil {
		return formatter.FailWith(ErrCodeReadInput, ExitCommandError, fmt.Errorf("read text: %w", err))
	}

	fp := fingerprint.Compute(string(text))
	if nfc {
		fp = fingerprint.ComputeNormalized(string(text))
	}
	return formatter.Success(string(fp), HashResult{Fingerprint: fp, Bytes: len(text), Normalized: nfc})
}
