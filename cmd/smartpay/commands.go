package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartpay/smartpay-api/pkg/client"
)

var nowFunc = time.Now

type command func(ctx context.Context, env *environment, args []string, out io.Writer) error

var commands = map[string]command{
	"signup":    signupCmd,
	"login":     loginCmd,
	"logout":    logoutCmd,
	"wallet":    walletCmd,
	"add-money": addMoneyCmd,
	"set-limit": setLimitCmd,
	"pay":       payCmd,
	"history":   historyCmd,
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// secret prefers the flag, then the environment variable.
func secret(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}

func signupCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	fs := newFlags("signup")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	mobile := fs.String("mobile", "", "mobile number")
	password := fs.String("password", "", "password (or SMARTPAY_PASSWORD)")
	pin := fs.String("pin", "", "4-6 digit payment PIN (or SMARTPAY_PIN)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := env.api.Signup(ctx, client.SignupRequest{
		Name:         *name,
		Email:        *email,
		MobileNumber: *mobile,
		Password:     secret(*password, "SMARTPAY_PASSWORD"),
		PIN:          secret(*pin, "SMARTPAY_PIN"),
	})
	if err != nil {
		return describe(err)
	}
	if err := env.store.Save(s); err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome, %s. You are logged in.\n", s.User.Name)
	return nil
}

func loginCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (or SMARTPAY_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := env.api.Login(ctx, *email, secret(*password, "SMARTPAY_PASSWORD"))
	if err != nil {
		return describe(err)
	}
	if err := env.store.Save(s); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s.\n", s.User.Email)
	return nil
}

func logoutCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	s, err := env.store.Load()
	if err != nil && !errors.Is(err, client.ErrCorruptSession) {
		return err
	}
	if s != nil && !s.Expired(nowFunc()) {
		// the token is forgotten locally even if the server is unreachable
		if err := env.api.Logout(ctx, s); err != nil && !client.IsUnauthorized(err) {
			fmt.Fprintln(out, "warning:", err)
		}
	}
	if err := env.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logged out.")
	return nil
}

func walletCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	s, err := session(ctx, env)
	if err != nil {
		return err
	}
	w, err := env.api.Wallet(ctx, s)
	if err != nil {
		return describe(err)
	}
	printWallet(out, w)
	return nil
}

func addMoneyCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	fs := newFlags("add-money")
	amount := fs.String("amount", "", "amount to add")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}

	s, err := session(ctx, env)
	if err != nil {
		return err
	}
	m, err := env.api.AddMoney(ctx, s, amt, "")
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "Added %s. Balance: %s\n", m.Transaction.Amount.StringFixed(2), m.Wallet.Balance.StringFixed(2))
	return nil
}

func setLimitCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	fs := newFlags("set-limit")
	limit := fs.String("limit", "", "monthly limit, 0 for none")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amt, err := decimal.NewFromString(*limit)
	if err != nil {
		return fmt.Errorf("invalid limit %q", *limit)
	}

	s, err := session(ctx, env)
	if err != nil {
		return err
	}
	w, err := env.api.SetLimit(ctx, s, amt)
	if err != nil {
		return describe(err)
	}
	printWallet(out, w)
	return nil
}

func payCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	fs := newFlags("pay")
	amount := fs.String("amount", "", "amount to pay")
	pin := fs.String("pin", "", "payment PIN (or SMARTPAY_PIN)")
	description := fs.String("description", "", "what the payment is for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}

	s, err := session(ctx, env)
	if err != nil {
		return err
	}

	// advisory only, the server has the final say
	if w, err := env.api.Wallet(ctx, s); err == nil {
		p := client.ProjectSpend(w, amt)
		switch {
		case p.ExceedsBalance:
			fmt.Fprintln(out, "warning: amount is above your balance")
		case p.ExceedsLimit:
			fmt.Fprintln(out, "warning: amount would exceed your monthly limit")
		case p.Alert != client.AlertNone:
			fmt.Fprintf(out, "warning: this brings you to %s%% of your monthly limit\n", p.PercentageAfter.StringFixed(2))
		}
	}

	m, err := env.api.Pay(ctx, s, client.PaymentRequest{
		Amount:      amt,
		PIN:         secret(*pin, "SMARTPAY_PIN"),
		Description: *description,
	})
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "Paid %s (%s). Balance: %s\n",
		m.Transaction.Amount.StringFixed(2), m.Transaction.Description, m.Wallet.Balance.StringFixed(2))
	return nil
}

func historyCmd(ctx context.Context, env *environment, args []string, out io.Writer) error {
	fs := newFlags("history")
	limit := fs.Int("limit", 0, "number of entries, 0 for the server default")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := session(ctx, env)
	if err != nil {
		return err
	}
	txs, err := env.api.Transactions(ctx, s, *limit)
	if err != nil {
		return describe(err)
	}
	if len(txs) == 0 {
		fmt.Fprintln(out, "No transactions yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, tx := range txs {
		sign := "+"
		if tx.Type == client.KindPayment {
			sign = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\t%s\n",
			tx.CreatedAt.Local().Format("2006-01-02 15:04"), tx.Type, sign,
			tx.Amount.StringFixed(2), tx.BalanceAfter.StringFixed(2), tx.Description)
	}
	return tw.Flush()
}

// session restores the saved session or explains how to get one.
func session(ctx context.Context, env *environment) (*client.Session, error) {
	s, err := client.Restore(ctx, env.api, env.store)
	switch {
	case errors.Is(err, client.ErrNoSession):
		return nil, errors.New("not logged in, run `smartpay login` first")
	case errors.Is(err, client.ErrSessionExpired):
		return nil, errors.New("session expired, run `smartpay login` again")
	case errors.Is(err, client.ErrCorruptSession):
		return nil, errors.New("saved session was unreadable and has been removed, run `smartpay login` again")
	case err != nil:
		return nil, describe(err)
	}
	return s, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(s)
	if err != nil || !amt.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return amt, nil
}

// describe turns API errors into the server's message plus field details.
func describe(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err
	}
	msg := apiErr.Detail
	for field, problem := range apiErr.Fields {
		msg += fmt.Sprintf("\n  %s: %s", field, problem)
	}
	return errors.New(msg)
}

func printWallet(out io.Writer, w *client.Wallet) {
	fmt.Fprintf(out, "Balance:        %s\n", w.Balance.StringFixed(2))
	if !w.HasLimit() {
		fmt.Fprintf(out, "Spent (month):  %s\n", w.SpentThisMonth.StringFixed(2))
		fmt.Fprintln(out, "Monthly limit:  none")
		return
	}
	fmt.Fprintf(out, "Spent (month):  %s of %s", w.SpentThisMonth.StringFixed(2), w.MonthlyLimit.StringFixed(2))
	if w.PercentageSpent != nil {
		fmt.Fprintf(out, " (%s%%)", w.PercentageSpent.StringFixed(2))
	}
	fmt.Fprintln(out)
	if w.Alert != client.AlertNone {
		fmt.Fprintf(out, "Alert:          %s\n", w.Alert)
	}
	if !w.CanTransact {
		fmt.Fprintln(out, "Monthly limit reached, payments are blocked until next month.")
	}
}
