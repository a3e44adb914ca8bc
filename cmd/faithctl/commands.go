package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/faith-connect/faith_connect/internal/apiclient"
	"github.com/faith-connect/faith_connect/internal/auth"
)

var errOTPFormat = errors.New("the code must be exactly 6 digits")

func commands(current func() *env) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "send a sign-in code to a registered phone or email",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "phone"},
				&cli.StringFlag{Name: "email"},
				rememberFlag(), noPromptFlag(),
			},
			Action: func(c *cli.Context) error {
				e := current()
				identifier, method, err := resolveIdentifier(c.String("phone"), c.String("email"), e.cfg.CountryCode)
				if err != nil {
					return err
				}
				confirmed, err := e.manager.Login(c.Context, identifier, method)
				if err != nil {
					return err
				}
				return e.continueVerification(c, confirmed, method)
			},
		},
		{
			Name:  "signup",
			Usage: "create an account and send its first code",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "phone", Required: true},
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "first-name"},
				&cli.StringFlag{Name: "last-name"},
				&cli.StringFlag{Name: "partnership-number"},
				&cli.StringFlag{Name: "method", Value: string(apiclient.MethodPhone), Usage: "phone or email"},
				rememberFlag(), noPromptFlag(),
			},
			Action: func(c *cli.Context) error {
				e := current()
				method := apiclient.Method(c.String("method"))
				if !method.Valid() {
					return fmt.Errorf("unknown method %q", method)
				}
				phone, err := auth.NormalizePhone(c.String("phone"), e.cfg.CountryCode)
				if err != nil {
					return err
				}
				confirmed, err := e.manager.Signup(c.Context, apiclient.SignupRequest{
					Phone:             phone,
					Email:             strings.TrimSpace(c.String("email")),
					FirstName:         c.String("first-name"),
					LastName:          c.String("last-name"),
					PartnershipNumber: c.String("partnership-number"),
					Method:            method,
				})
				if err != nil {
					return err
				}
				return e.continueVerification(c, confirmed, method)
			},
		},
		{
			Name:  "verify",
			Usage: "exchange a code for a session",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "identifier", Required: true},
				&cli.StringFlag{Name: "otp", Required: true},
				rememberFlag(),
			},
			Action: func(c *cli.Context) error {
				return current().verify(c, c.String("identifier"), c.String("otp"))
			},
		},
		{
			Name:  "resend",
			Usage: "send a new code",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "identifier", Required: true},
				&cli.StringFlag{Name: "method", Value: string(apiclient.MethodPhone)},
			},
			Action: func(c *cli.Context) error {
				e := current()
				resp, err := e.manager.ResendOTP(c.Context, c.String("identifier"), apiclient.Method(c.String("method")))
				if err != nil {
					return err
				}
				if !apiclient.OK(resp) {
					return apiclient.DecodeError(resp, "Failed to resend code")
				}
				resp.Body.Close()
				fmt.Fprintln(e.out, "A new code is on its way.")
				return nil
			},
		},
		{
			Name:  "whoami",
			Usage: "print the signed-in user",
			Action: func(c *cli.Context) error {
				e := current()
				user := e.manager.User()
				if user == nil {
					return cli.Exit("Not signed in.", 1)
				}
				return printJSON(e.out, user)
			},
		},
		{
			Name:  "refresh",
			Usage: "refetch the signed-in user",
			Action: func(c *cli.Context) error {
				e := current()
				if e.manager.State() != auth.StateAuthenticated {
					return cli.Exit("Not signed in.", 1)
				}
				user, err := e.manager.RefreshUser(c.Context)
				if err != nil {
					return err
				}
				return printJSON(e.out, user)
			},
		},
		{
			Name:      "account-type",
			Usage:     "choose the account type (member, business_owner, church_admin)",
			ArgsUsage: "<type>",
			Action: func(c *cli.Context) error {
				e := current()
				if c.NArg() != 1 {
					return cli.Exit("account-type takes exactly one argument", 2)
				}
				user, err := e.manager.SetAccountType(c.Context, auth.UserType(c.Args().First()))
				if err != nil {
					return err
				}
				return printJSON(e.out, user)
			},
		},
		{
			Name:  "logout",
			Usage: "sign out and forget stored tokens",
			Action: func(c *cli.Context) error {
				return current().manager.Logout(c.Context)
			},
		},
		{
			Name:      "asset-url",
			Usage:     "resolve a media path returned by the API",
			ArgsUsage: "<path>",
			Action: func(c *cli.Context) error {
				e := current()
				for _, p := range c.Args().Slice() {
					fmt.Fprintln(e.out, e.client.ResolveAssetURL(p))
				}
				return nil
			},
		},
	}
}

func rememberFlag() cli.Flag {
	return &cli.BoolFlag{Name: "remember", Usage: "keep the session for up to 30 days"}
}

func noPromptFlag() cli.Flag {
	return &cli.BoolFlag{Name: "no-prompt", Usage: "print the identifier instead of asking for the code"}
}

// continueVerification either asks for the code on stdin or, with
// --no-prompt, prints what the verify command needs.
func (e *env) continueVerification(c *cli.Context, identifier string, method apiclient.Method) error {
	if c.Bool("no-prompt") {
		fmt.Fprintf(e.out, "Code sent via %s. Finish with:\n  faithctl verify --identifier %q --otp <code>\n", method, identifier)
		return nil
	}
	fmt.Fprintf(e.out, "Enter the 6-digit code sent to %s: ", identifier)
	code, err := readLine(e.in)
	if err != nil {
		return err
	}
	return e.verify(c, identifier, code)
}

func (e *env) verify(c *cli.Context, identifier, code string) error {
	code = strings.TrimSpace(code)
	if !validOTP(code) {
		return errOTPFormat
	}
	user, err := e.manager.VerifyOTP(c.Context, identifier, code, c.Bool("remember"))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Signed in as %s.\n", displayName(user))
	if user.UserType == "" {
		fmt.Fprintln(e.out, "Choose an account type with: faithctl account-type <member|business_owner|church_admin>")
	}
	return nil
}

// resolveIdentifier picks the login identifier from the flags. Phone numbers
// are normalised to +<country><number>.
func resolveIdentifier(phone, email, countryCode string) (string, apiclient.Method, error) {
	phone, email = strings.TrimSpace(phone), strings.TrimSpace(email)
	switch {
	case phone != "" && email != "":
		return "", "", errors.New("pass either --phone or --email, not both")
	case email != "":
		if !strings.Contains(email, "@") {
			return "", "", fmt.Errorf("%q is not an email address", email)
		}
		return email, apiclient.MethodEmail, nil
	case phone != "":
		normalized, err := auth.NormalizePhone(phone, countryCode)
		if err != nil {
			return "", "", err
		}
		return normalized, apiclient.MethodPhone, nil
	default:
		return "", "", errors.New("please enter your phone number or email")
	}
}

func validOTP(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func displayName(u auth.Identity) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Phone != "":
		return u.Phone
	case u.Email != "":
		return u.Email
	default:
		return fmt.Sprintf("user %d", u.ID)
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read code: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
