package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/internal/offer"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func newOfferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Draft, submit and answer offers",
	}
	cmd.AddCommand(
		newOfferCreateCmd(a),
		newOfferSubmitCmd(a),
		newOfferCounterCmd(a),
		newOfferEventCmd(a, "accept", "Accept the live offer", (*broker.Service).AcceptOffer),
		newOfferEventCmd(a, "reject", "Reject the live offer", (*broker.Service).RejectOffer),
		newOfferDiscardCmd(a),
	)
	return cmd
}

// termsFlags binds the commercial fields of an offer.
type termsFlags struct {
	price     float64
	quantity  string
	terms     string
	message   string
	expiresIn time.Duration
}

func (t *termsFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&t.price, "price", 0, "offered price")
	f.StringVar(&t.quantity, "quantity", "", "offered quantity")
	f.StringVar(&t.terms, "terms", "", "commercial terms")
	f.StringVar(&t.message, "message", "", "message to the counterparty")
	f.DurationVar(&t.expiresIn, "expires-in", 0, "offer lifetime (default: offer_ttl from config)")
}

// changed reports whether any terms flag was given.
func (t *termsFlags) changed(cmd *cobra.Command) bool {
	for _, name := range []string{"price", "quantity", "terms", "message", "expires-in"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func (t *termsFlags) build(now time.Time) offer.Terms {
	out := offer.Terms{
		Price:    t.price,
		Quantity: t.quantity,
		Terms:    t.terms,
		Message:  t.message,
	}
	if t.expiresIn > 0 {
		at := now.Add(t.expiresIn)
		out.ExpiresAt = &at
	}
	return out
}

func newOfferCreateCmd(a *app) *cobra.Command {
	var (
		terms  termsFlags
		buyer  string
		submit bool
	)
	cmd := &cobra.Command{
		Use:   "create <listing-id>",
		Short: "Draft an offer on a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				o, err := svc.CreateOffer(cmd.Context(), userID, broker.CreateOfferInput{
					ListingID:  args[0],
					BuyerOrgID: buyer,
					Terms:      terms.build(svc.Now()),
					Submit:     submit,
				})
				if err != nil {
					return err
				}
				return a.emitOffer(o)
			})
		},
	}
	terms.bind(cmd)
	cmd.Flags().StringVar(&buyer, "buyer-org", "", "buying organization when the user sits in several")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the offer right away")
	return cmd
}

func newOfferSubmitCmd(a *app) *cobra.Command {
	var terms termsFlags
	cmd := &cobra.Command{
		Use:   "submit <offer-id>",
		Short: "Submit a draft offer, optionally replacing its terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				var replacement *offer.Terms
				if terms.changed(cmd) {
					t := terms.build(svc.Now())
					replacement = &t
				}
				res, err := svc.SubmitOffer(cmd.Context(), userID, args[0], replacement)
				if err != nil {
					return err
				}
				return a.emitResult(res)
			})
		},
	}
	terms.bind(cmd)
	return cmd
}

func newOfferCounterCmd(a *app) *cobra.Command {
	var terms termsFlags
	cmd := &cobra.Command{
		Use:   "counter <offer-id>",
		Short: "Counter the live offer with new terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				res, err := svc.CounterOffer(cmd.Context(), userID, args[0], terms.build(svc.Now()))
				if err != nil {
					return err
				}
				return a.emitResult(res)
			})
		},
	}
	terms.bind(cmd)
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

type offerEvent func(*broker.Service, context.Context, string, string) (offer.Result, error)

func newOfferEventCmd(a *app, use, short string, apply offerEvent) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <offer-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				res, err := apply(svc, cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				return a.emitResult(res)
			})
		},
	}
}

func newOfferDiscardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <offer-id>",
		Short: "Delete a draft offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				if err := svc.DiscardOffer(cmd.Context(), userID, args[0]); err != nil {
					return err
				}
				return a.emit(map[string]string{"discarded": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Discarded draft %s\n", args[0])
				})
			})
		},
	}
}

// resultView is the JSON shape of a transition.
type resultView struct {
	Offer      types.Offer  `json:"offer"`
	Created    *types.Offer `json:"created,omitempty"`
	Superseded []string     `json:"superseded,omitempty"`
	Accepted   bool         `json:"accepted"`
}

func (a *app) emitResult(res offer.Result) error {
	v := resultView{Offer: res.Offer, Created: res.Created, Superseded: res.Superseded, Accepted: res.Accepted}
	return a.emit(v, func(w io.Writer) {
		fmt.Fprintf(w, "Offer %s is %s\n", res.Offer.OfferID, res.Offer.State)
		if res.Created != nil {
			fmt.Fprintf(w, "Offer %s is %s\n", res.Created.OfferID, res.Created.State)
		}
		if res.Accepted {
			fmt.Fprintf(w, "Thread %s concluded; identities revealed\n", res.Offer.ThreadID)
		}
	})
}

func (a *app) emitOffer(o types.Offer) error {
	return a.emit(o, func(w io.Writer) {
		fmt.Fprintf(w, "ID:       %s\n", o.OfferID)
		fmt.Fprintf(w, "Thread:   %s\n", o.ThreadID)
		fmt.Fprintf(w, "State:    %s\n", o.State)
		fmt.Fprintf(w, "Price:    %g\n", o.Price)
		fmt.Fprintf(w, "Quantity: %s\n", orDash(o.Quantity))
		fmt.Fprintf(w, "Terms:    %s\n", orDash(o.Terms))
		fmt.Fprintf(w, "Message:  %s\n", orDash(o.Message))
		fmt.Fprintf(w, "Expires:  %s\n", fmtTime(o.ExpiresAt))
	})
}
