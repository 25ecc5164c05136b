package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eoscanada/eos-go/ecc"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aatumaykin/autoclaim/internal/config"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/credentials"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing keys in the encrypted key store",
}

var keysImportCmd = &cobra.Command{
	Use:   "import [public-key]",
	Short: "Store a private key, read from the terminal or stdin",
	Long: `Store a private key in the encrypted key store under its public key.
The key is read without echo from a terminal, or as the first line of stdin.
When a public key is given it must match the private key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeysImport,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored public keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ids, err := credentials.NewStore(cfg.CredentialsDir(), cfg.Credentials.Passphrase).List(cfg.Credentials.Service)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), constants.MsgNoKeys)
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <public-key>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := credentials.NewStore(cfg.CredentialsDir(), cfg.Credentials.Passphrase)
		if err := store.DeleteSecret(cfg.Credentials.Service, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), constants.MsgKeyRemoved, args[0])
		return nil
	},
}

func runKeysImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Credentials.Passphrase == "" {
		return errors.New(constants.MsgNoPassphrase)
	}

	wif, err := readPrivateKey(cmd)
	if err != nil {
		return err
	}
	keyID, err := publicKeyFor(wif, args)
	if err != nil {
		return err
	}

	return importKey(cmd, cfg, keyID, wif)
}

func importKey(cmd *cobra.Command, cfg *config.Config, keyID, wif string) error {
	store := credentials.NewStore(cfg.CredentialsDir(), cfg.Credentials.Passphrase)
	if err := store.PutSecret(cfg.Credentials.Service, keyID, wif); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), constants.MsgKeyImported, keyID)
	return nil
}

// publicKeyFor derives the public key of wif and checks it against the
// optional argument.
func publicKeyFor(wif string, args []string) (string, error) {
	priv, err := ecc.NewPrivateKey(wif)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	derived := priv.PublicKey().String()
	if len(args) == 0 {
		return derived, nil
	}

	want := strings.TrimSpace(args[0])
	if want != derived {
		pub, err := ecc.NewPublicKey(want)
		if err != nil {
			return "", fmt.Errorf("invalid public key: %w", err)
		}
		if pub.String() != derived {
			return "", fmt.Errorf(constants.MsgKeyMismatch, derived, want)
		}
	}
	return want, nil
}

func readPrivateKey(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(fd) {
		state, err := term.GetState(fd)
		if err != nil {
			return "", err
		}
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		go func() {
			if _, ok := <-sig; ok {
				term.Restore(fd, state)
				os.Exit(130)
			}
		}()

		fmt.Fprint(cmd.ErrOrStderr(), constants.MsgKeyPrompt)
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read private key: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no private key given")
	}
	return line, nil
}

func init() {
	keysCmd.AddCommand(keysImportCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRemoveCmd)
}
