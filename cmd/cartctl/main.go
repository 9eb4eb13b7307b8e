package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/example/itservices-cart/internal/auth"
	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:          "cartctl",
		Short:        "Operator tools for the IT services cart",
		SilenceUsage: true,
	}
	root.AddCommand(newRulesCmd(), newQuoteCmd(), newTokenCmd(getenv))
	return root
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the seat pricing rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), pricing.DefaultTable.Rules())
		},
	}
}

type quoteFlags struct {
	slug    string
	base    string
	qty     int
	billing string
	seats   int
	level   string
	urgent  bool
	options []string
}

type quoteOutput struct {
	Breakdown    pricing.Breakdown `json:"breakdown"`
	Tax          decimal.Decimal   `json:"tax"`
	TotalWithTax decimal.Decimal   `json:"total_with_tax"`
}

func newQuoteCmd() *cobra.Command {
	var f quoteFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a single service line",
		Long: `Price a single service line with the catalog rules.

Options are given as id=price, for example --option backup=49.90.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.lineInput()
			if err != nil {
				return err
			}
			b := pricing.DefaultTable.Quote(in)
			tax := b.Total.Mul(cart.VATRate)
			return writeJSON(cmd.OutOrStdout(), quoteOutput{
				Breakdown:    b,
				Tax:          tax,
				TotalWithTax: b.Total.Add(tax),
			})
		},
	}

	cmd.Flags().StringVar(&f.slug, "slug", "", "Service slug")
	cmd.Flags().StringVar(&f.base, "base", "0", "Base price")
	cmd.Flags().IntVar(&f.qty, "qty", 1, "Quantity")
	cmd.Flags().StringVar(&f.billing, "billing", "", "Billing kind (flat or per-seat)")
	cmd.Flags().IntVar(&f.seats, "seats", 0, "Seats for per-seat billing")
	cmd.Flags().StringVar(&f.level, "level", "", "Service level (standard or premium)")
	cmd.Flags().BoolVar(&f.urgent, "urgent", false, "Urgent intervention")
	cmd.Flags().StringArrayVar(&f.options, "option", nil, "Option as id=price (repeatable)")
	return cmd
}

func (f quoteFlags) lineInput() (pricing.LineInput, error) {
	base, err := decimal.NewFromString(f.base)
	if err != nil {
		return pricing.LineInput{}, fmt.Errorf("invalid base price %q: %w", f.base, err)
	}
	if f.qty <= 0 {
		return pricing.LineInput{}, cart.ErrInvalidQuantity
	}

	in := pricing.LineInput{Slug: f.slug, BasePrice: base, Quantity: f.qty}

	for _, o := range f.options {
		id, price, ok := strings.Cut(o, "=")
		if !ok || id == "" {
			return pricing.LineInput{}, fmt.Errorf("invalid option %q, want id=price", o)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return pricing.LineInput{}, fmt.Errorf("invalid option price %q: %w", price, err)
		}
		in.Options = append(in.Options, pricing.Option{ID: id, Name: id, Value: true, Price: &p})
	}

	if f.billing != "" || f.level != "" || f.urgent {
		cfg := pricing.Configuration{
			Billing:      pricing.Billing{Kind: f.billing, Seats: f.seats},
			ServiceLevel: f.level,
			Urgent:       f.urgent,
		}
		if err := cfg.Validate(); err != nil {
			return pricing.LineInput{}, err
		}
		in.Configuration = &cfg
	}
	return in, nil
}

func newTokenCmd(getenv func(string) string) *cobra.Command {
	var (
		secret string
		issuer string
		userID string
		email  string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		Long: `Issue an HS256 access token accepted by the cart API.

The secret defaults to JWT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = getenv("JWT_SECRET")
			}
			svc, err := auth.NewJWTService(secret, issuer, ttl)
			if err != nil {
				return err
			}
			token, expires, err := svc.GenerateAccessToken(userID, email, role)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"access_token": token,
				"expires_at":   expires,
			})
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Token issuer")
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&role, "role", auth.RoleCustomer, "Role (customer or staff)")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
