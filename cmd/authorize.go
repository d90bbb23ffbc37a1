package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/juju/webbrowser"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"table-backup/internal/auth"
	"table-backup/internal/display"
	"table-backup/internal/errors"
)

var (
	noBrowser          bool
	noInteractiveCheck bool
)

func newAuthorizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Obtain the refresh token used by scheduled runs",
		Long: `Authorize performs the one-time interactive sign-in that produces the
refresh token read by every later run.

It prints the sign-in URL and tries to open it in a browser. After consenting,
the browser is redirected to the configured redirect URL (which need not be
served); paste that full address back here. The code is exchanged for tokens
and the refresh token is written to oauth.refresh_token_file when configured,
and printed.

Only the refresh_token grant needs this step.`,
		Args: cobra.NoArgs,
		RunE: runAuthorize,
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "do not try to open a browser")
	cmd.Flags().BoolVar(&noInteractiveCheck, "no-interactive-check", false, "allow running without a terminal on stdin")
	return cmd
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.OAuth.Grant == auth.GrantClientCredentials {
		return errors.NewConfigurationError("authorize is not needed for the client_credentials grant", nil).
			WithUserMessage("oauth.grant is client_credentials; scheduled runs use the client secret and need no refresh token.")
	}
	if !noInteractiveCheck && !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.NewConfigurationError("authorize requires an interactive terminal", nil).
			WithUserMessage("authorize must be run from an interactive terminal (or pass --no-interactive-check).")
	}

	authorizer, err := auth.NewAuthorizer(cfg.OAuth)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := display.NewPrinter(out, display.OutputText, newColors())

	authURL := authorizer.AuthCodeURL()
	printer.Highlight("Open this URL in a browser and sign in:", authURL)
	if !noBrowser {
		if u, err := url.Parse(authURL); err == nil {
			if err := webbrowser.Open(u); err != nil {
				printer.Status(display.IconWarning, fmt.Sprintf("Could not open a browser (%v); open the URL manually.", err))
			}
		}
	}

	fmt.Fprintf(out, "\nAfter signing in you are redirected to %s.\n", authorizer.RedirectURL())
	fmt.Fprint(out, "Paste the full address from the browser here: ")

	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return errors.NewConfigurationError("failed to read the redirect url", err)
	}
	code, err := authorizer.ParseRedirect(line)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeToken) {
			return err
		}
		return errors.NewConfigurationError("invalid redirect url", err).WithUserMessage(err.Error())
	}

	token, err := authorizer.Exchange(cmd.Context(), code)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return errors.NewTokenError("no refresh token was returned", nil).
			WithUserMessage("The identity platform returned no refresh token; check that the app registration allows offline_access.")
	}

	if path := cfg.OAuth.RefreshTokenFile; path != "" {
		if err := auth.NewRefreshStore("", path).Save(token.RefreshToken); err != nil {
			printer.Highlight("Refresh token (not saved):", token.RefreshToken)
			return errors.NewConfigurationError("failed to save refresh token", err).WithUserMessage(err.Error())
		}
		printer.Status(display.IconSuccess, "Refresh token saved to "+path)
	}

	fmt.Fprintln(out)
	printer.Highlight("Refresh token (set ONEDRIVE_REFRESH_TOKEN or oauth.refresh_token):", token.RefreshToken)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
