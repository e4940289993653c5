// Package orderstate drives the active order into ArrangingPayment before any
// payment handle is requested.
package orderstate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

// selfTransitionMarker is the wording Vendure uses when the order is already in
// ArrangingPayment. Only consulted when fromState/toState are missing.
var selfTransitionMarker = fmt.Sprintf("from %q to %q", enums.OrderStateArrangingPayment, enums.OrderStateArrangingPayment)

// Gateway executes Shop API operations.
type Gateway interface {
	Execute(ctx context.Context, req vendure.Request, session *vendure.Session) vendure.Result
}

// Coordinator fetches the active order and moves it into ArrangingPayment.
type Coordinator struct {
	gateway Gateway
	logg    *logger.Logger
}

// NewCoordinator builds a coordinator over the provided gateway.
func NewCoordinator(gateway Gateway, logg *logger.Logger) (*Coordinator, error) {
	if gateway == nil {
		return nil, errors.New("vendure gateway required")
	}
	return &Coordinator{gateway: gateway, logg: logg}, nil
}

// TransitionFailure is exposed as the details of ORDER_TRANSITION_FAILED.
type TransitionFailure struct {
	TypeName string `json:"__typename,omitempty"`
	vendure.ErrorResult
}

// ActiveOrder returns the session's active order or NO_ACTIVE_ORDER.
func (c *Coordinator) ActiveOrder(ctx context.Context, session *vendure.Session) (*vendure.Order, error) {
	res := c.gateway.Execute(ctx, vendure.Request{Query: vendure.ActiveOrderForPaymentQuery}, session)
	if res.HasErrors() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.FirstMessage("Failed to fetch active order")).
			WithTitle("Failed to fetch order").
			WithDetails(res.Errors)
	}

	var data struct {
		ActiveOrder *vendure.Order `json:"activeOrder"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode active order")
	}
	if data.ActiveOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNoActiveOrder, "Add items to cart before payment")
	}
	return data.ActiveOrder, nil
}

// EnsureArrangingPayment returns the active order after making sure it is in
// ArrangingPayment. An order already there is returned without any mutation,
// and the already-there transition error is treated as success.
func (c *Coordinator) EnsureArrangingPayment(ctx context.Context, session *vendure.Session) (*vendure.Order, error) {
	order, err := c.ActiveOrder(ctx, session)
	if err != nil {
		return nil, err
	}
	if order.State == enums.OrderStateArrangingPayment {
		return order, nil
	}

	res := c.gateway.Execute(ctx, vendure.Request{
		Query:     vendure.TransitionOrderToStateMutation,
		Variables: map[string]any{"state": enums.OrderStateArrangingPayment},
	}, session)
	if res.HasErrors() {
		return nil, transitionFailed(res.Errors)
	}

	var data struct {
		Transition *vendure.OrderResult `json:"transitionOrderToState"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode order transition")
	}

	transition := data.Transition
	switch {
	case transition.IsOrder():
		c.logTransition(ctx, order, transition.State)
		order.State = transition.State
		return order, nil
	case transition != nil && transition.TypeName == vendure.TypeOrderStateTransitionError:
		if !IsSelfTransition(transition.ErrorResult) {
			return nil, transitionFailed(TransitionFailure{TypeName: transition.TypeName, ErrorResult: transition.ErrorResult})
		}
		order.State = enums.OrderStateArrangingPayment
		return order, nil
	default:
		var details any
		if transition != nil {
			details = TransitionFailure{TypeName: transition.TypeName, ErrorResult: transition.ErrorResult}
		}
		return nil, transitionFailed(details)
	}
}

// IsSelfTransition reports whether a transition error only says the order is
// already in ArrangingPayment. The structured states win when Vendure sends them.
func IsSelfTransition(result vendure.ErrorResult) bool {
	if result.FromState != "" || result.ToState != "" {
		return result.FromState == string(enums.OrderStateArrangingPayment) &&
			result.ToState == string(enums.OrderStateArrangingPayment)
	}
	return strings.Contains(result.TransitionError, selfTransitionMarker)
}

func transitionFailed(details any) error {
	err := pkgerrors.New(pkgerrors.CodeOrderTransitionFailed, "Cannot transition order to payment state")
	if details != nil {
		err.WithDetails(details)
	}
	return err
}

func (c *Coordinator) logTransition(ctx context.Context, order *vendure.Order, to enums.OrderState) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithOrderCode(ctx, order.Code)
	ctx = c.logg.WithFields(ctx, map[string]any{"from_state": order.State, "to_state": to})
	c.logg.Info(ctx, "order.transitioned")
}
