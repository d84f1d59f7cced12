package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywheel/keywheel/internal/infrastructure/crypto"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and generate signing keys",
	}
	cmd.AddCommand(newKeysGenerateCommand())
	return cmd
}

// newKeysGenerateCommand generates a throwaway keypair and prints its key
// id and public JWK. The private half is discarded; this exists to preview
// what a rotation would publish, not to provision keys.
func newKeysGenerateCommand() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a keypair and print its key id and public JWK",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.NewGenerator().Generate(algorithm)
			if err != nil {
				return err
			}

			var pretty map[string]interface{}
			if err := json.Unmarshal(key.PublicJWK, &pretty); err != nil {
				return err
			}
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kid: %s\n%s\n", key.ID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", "ES256", "signing algorithm (ES256, ES384, RS256, RS384)")
	return cmd
}
