// storectl is the operator's console client. It drives the same session
// endpoints the web console uses and keeps its credential in the user config
// dir, so a login survives across invocations until it expires or is revoked.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jmespath/go-jmespath"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storegate/pkg/session"
)

func main() {
	serverFlag := &cli.StringFlag{
		Name:  "server",
		Value: "http://localhost:8080",
		Usage: "Admin service base URL",
	}
	queryFlag := &cli.StringFlag{
		Name:    "query",
		Aliases: []string{"q"},
		Usage:   "JMESPath expression applied to the JSON output",
	}

	cmd := &cli.Command{
		Name:  "storectl",
		Usage: "Storefront admin console client",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authenticate and persist the session credential",
				Flags: []cli.Flag{
					serverFlag,
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (falls back to STOREGATE_PASSWORD, then a prompt)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					auth, err := newAuthority(cmd.String("server"))
					if err != nil {
						return err
					}
					password := cmd.String("password")
					if password == "" {
						password = os.Getenv("STOREGATE_PASSWORD")
					}
					if password == "" {
						fmt.Fprint(os.Stderr, "password: ")
						line, err := bufio.NewReader(os.Stdin).ReadString('\n')
						if err != nil {
							return err
						}
						password = strings.TrimRight(line, "\r\n")
					}
					id, err := auth.Login(ctx, session.Credentials{
						Username: cmd.String("username"),
						Password: password,
					})
					if err != nil {
						return err
					}
					return printJSON(identityView(id), cmd.String("query"))
				},
			},
			{
				Name:  "logout",
				Usage: "Clear the session and revoke the token",
				Flags: []cli.Flag{serverFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					auth, err := newAuthority(cmd.String("server"))
					if err != nil {
						return err
					}
					auth.Logout(ctx)
					fmt.Println("logged out")
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show the current session identity",
				Flags: []cli.Flag{serverFlag, queryFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					auth, err := newAuthority(cmd.String("server"))
					if err != nil {
						return err
					}
					id := auth.CurrentIdentity()
					if id == nil {
						return fmt.Errorf("not logged in")
					}
					return printJSON(identityView(id), cmd.String("query"))
				},
			},
			{
				Name:  "refresh",
				Usage: "Rotate the session credential",
				Flags: []cli.Flag{serverFlag, queryFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					auth, err := newAuthority(cmd.String("server"))
					if err != nil {
						return err
					}
					id, err := auth.Refresh(ctx)
					if err != nil {
						return err
					}
					return printJSON(identityView(id), cmd.String("query"))
				},
			},
			{
				Name:  "menu",
				Usage: "Show the console menu for the current session",
				Flags: []cli.Flag{serverFlag, queryFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return apiGet(ctx, cmd, "/admin/menu")
				},
			},
			{
				Name:      "resources",
				Usage:     "List entities of a resource, e.g. storectl resources products",
				ArgsUsage: "<type>",
				Flags:     []cli.Flag{serverFlag, queryFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					entityType := cmd.Args().First()
					if entityType == "" {
						return fmt.Errorf("resource type required")
					}
					return apiGet(ctx, cmd, "/admin/resources/"+entityType)
				},
			},
			{
				Name:      "open",
				Usage:     "Check whether the current session may open a console view",
				ArgsUsage: "<view>",
				Flags: []cli.Flag{
					serverFlag,
					&cli.StringFlag{Name: "role", Usage: "Role the view requires, if any"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					view := cmd.Args().First()
					if view == "" {
						return fmt.Errorf("view required")
					}
					auth, err := newAuthority(cmd.String("server"))
					if err != nil {
						return err
					}
					v := session.NewGate(auth).Guard(view, session.Capability{Role: cmd.String("role")})
					switch v.Decision {
					case session.Render:
						fmt.Printf("render %s\n", v.View)
					case session.RedirectToLogin:
						fmt.Printf("login required, return to %s\n", v.ReturnTo)
					case session.Forbidden:
						fmt.Printf("forbidden: %s\n", v.View)
					}
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newAuthority(server string) (*session.Authority, error) {
	path, err := session.DefaultCredentialPath()
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zl, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return session.New(session.NewFileStore(path), session.Config{Endpoint: strings.TrimRight(server, "/")}, zl.Sugar()), nil
}

// identityView is what whoami prints. The raw credential stays out of it.
func identityView(id *session.Identity) map[string]any {
	return map[string]any{
		"subject":    id.Subject,
		"name":       id.Name,
		"roles":      id.Roles,
		"expires_at": id.ExpiresAt,
	}
}

func apiGet(ctx context.Context, cmd *cli.Command, path string) error {
	auth, err := newAuthority(cmd.String("server"))
	if err != nil {
		return err
	}
	id := auth.CurrentIdentity()
	if id == nil {
		return fmt.Errorf("not logged in")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(cmd.String("server"), "/")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+id.Credential)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, summarize(body))
	}
	return printJSON(body, cmd.String("query"))
}

func summarize(body any) string {
	if m, ok := body.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok {
			return msg
		}
	}
	return "unexpected response"
}

func printJSON(v any, query string) error {
	if query != "" {
		// jmespath wants plain maps/slices, so round-trip typed values first.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		v, err = jmespath.Search(query, generic)
		if err != nil {
			return fmt.Errorf("jmespath: %w", err)
		}
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
