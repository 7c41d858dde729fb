// cmd/client/cmd/notify/decode.go
package notify

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var base64Input bool

var DecodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decrypt a received push message",
	Long: `Decrypt an aes128gcm push message addressed to this client's keys
and print the payload.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		if base64Input {
			decoded, err := base64.StdEncoding.DecodeString(string(raw))
			if err != nil {
				return fmt.Errorf("decode base64: %w", err)
			}
			raw = decoded
		}

		plaintext, err := app.DecryptPush(cmd.Context(), raw)
		if err != nil {
			return fmt.Errorf("decrypt message: %w", err)
		}

		fmt.Println(string(plaintext))
		return nil
	},
}

func init() {
	DecodeCmd.Flags().BoolVar(&base64Input, "base64", false, "input file is base64 encoded")
}
