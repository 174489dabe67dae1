package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/notifications"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Service struct {
	store    Store
	notifier notifications.Sink
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService wires the engine. notifier receives lifecycle notifications,
// which are written after the status change commits.
func NewService(store Store, notifier notifications.Sink, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		tracer:   otel.Tracer("github.com/ariefcatur/agro-market/internal/orders"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validatePlacement(req PlaceOrderRequest) error {
	if strings.TrimSpace(req.BuyerID) == "" {
		return ErrMissingBuyer
	}
	if len(req.Items) == 0 {
		return ErrEmptyCart
	}
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return ErrMissingProduct
		}
		if !it.Quantity.IsPositive() || !it.Quantity.Equal(it.Quantity.Round(2)) {
			return &ProductError{ProductID: it.ProductID, Err: ErrInvalidQuantity}
		}
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return ErrMissingAddress
	}
	return nil
}

type vendorGroup struct {
	vendorID string
	items    []OrderItem
	total    decimal.Decimal
}

// PlaceOrder splits the cart into one order per vendor and commits all of
// them, with their stock decrements and vendor notifications, or none.
// Returned ids follow the first-seen vendor order of the cart.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (ids []string, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder", trace.WithAttributes(
		attribute.String("buyer.id", req.BuyerID),
		attribute.Int("cart.lines", len(req.Items)),
	))
	defer func() { endSpan(span, err) }()

	if err := validatePlacement(req); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockProducts(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		groups, err := groupByVendor(req.Items, locked)
		if err != nil {
			return err
		}

		now := s.now()
		ids = make([]string, 0, len(groups))
		for _, g := range groups {
			o := Order{
				ID:              uuid.NewString(),
				BuyerID:         req.BuyerID,
				VendorID:        g.vendorID,
				TotalAmount:     g.total,
				DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
				DeliveryDate:    req.DeliveryDate,
				Status:          StatusPending,
				PaymentStatus:   PaymentPending,
				Notes:           req.Notes,
				CreatedAt:       now,
				UpdatedAt:       now,
				Items:           g.items,
			}
			for i := range o.Items {
				o.Items[i].OrderID = o.ID
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
			for _, it := range o.Items {
				if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
					if errors.Is(err, inventory.ErrInsufficientStock) {
						return &ProductError{ProductID: it.ProductID, Err: ErrInsufficientStock}
					}
					return fmt.Errorf("decrement stock: %w", err)
				}
			}
			n := notifications.New(g.vendorID, "New Order Received!",
				fmt.Sprintf("You have a new order %s from buyer %s worth %s", o.ID, req.BuyerID, o.TotalAmount.StringFixed(2)),
				notifications.TypeOrder)
			if err := tx.Notify(ctx, n); err != nil {
				return fmt.Errorf("enqueue notification: %w", err)
			}
			ids = append(ids, o.ID)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("place order rejected", zap.String("buyer_id", req.BuyerID), zap.Error(err))
		return nil, err
	}

	s.log.Info("orders placed", zap.String("buyer_id", req.BuyerID), zap.Strings("order_ids", ids))
	return ids, nil
}

// lockProducts takes row locks in id order so concurrent placements over
// overlapping carts cannot deadlock.
func lockProducts(ctx context.Context, tx Tx, items []CartItem) (map[string]inventory.Product, error) {
	pids := make([]string, 0, len(items))
	for _, it := range items {
		pids = append(pids, it.ProductID)
	}
	slices.Sort(pids)
	pids = slices.Compact(pids)

	locked := make(map[string]inventory.Product, len(pids))
	for _, id := range pids {
		p, err := tx.LockProduct(ctx, id)
		if errors.Is(err, inventory.ErrNotFound) {
			return nil, &ProductError{ProductID: id, Err: ErrProductNotFound}
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", id, err)
		}
		locked[id] = p
	}
	return locked, nil
}

// groupByVendor checks availability line by line, counting repeated lines
// of one product against the same stock, and snapshots unit prices.
func groupByVendor(items []CartItem, locked map[string]inventory.Product) ([]*vendorGroup, error) {
	demand := make(map[string]decimal.Decimal, len(locked))
	byVendor := make(map[string]*vendorGroup)
	var groups []*vendorGroup

	for _, it := range items {
		p := locked[it.ProductID]
		if p.Status != inventory.StatusAvailable {
			return nil, &ProductError{ProductID: p.ID, Err: ErrProductUnavailable}
		}
		want := demand[p.ID].Add(it.Quantity)
		if !p.CanSell(want) {
			return nil, &ProductError{ProductID: p.ID, Err: ErrInsufficientStock}
		}
		demand[p.ID] = want

		g, ok := byVendor[p.VendorID]
		if !ok {
			g = &vendorGroup{vendorID: p.VendorID}
			byVendor[p.VendorID] = g
			groups = append(groups, g)
		}
		sub := it.Quantity.Mul(p.UnitPrice)
		g.items = append(g.items, OrderItem{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Quantity:  it.Quantity,
			UnitPrice: p.UnitPrice,
			Subtotal:  sub,
		})
		g.total = g.total.Add(sub)
	}
	return groups, nil
}

// UpdateStatus applies one lifecycle transition. The counterparty
// notification is written after the status commits; if that write fails the
// transition stands and the failure is logged.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, actor Actor, to Status) (o Order, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("actor.role", string(actor.Role)),
		attribute.String("order.target_status", string(to)),
	))
	defer func() { endSpan(span, err) }()

	if !to.Valid() {
		return Order{}, ErrInvalidStatus
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := Authorize(cur, actor, to); err != nil {
			return err
		}
		cur.UpdatedAt = s.now()
		if err := tx.UpdateOrderStatus(ctx, cur.ID, to, cur.UpdatedAt); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		o = cur
		return nil
	})
	if err != nil {
		s.log.Warn("status change rejected",
			zap.String("order_id", orderID), zap.String("actor_id", actor.ID),
			zap.String("target", string(to)), zap.Error(err))
		return Order{}, err
	}
	from := o.Status
	o.Status = to

	s.log.Info("order status changed",
		zap.String("order_id", o.ID), zap.String("from", string(from)), zap.String("to", string(to)),
		zap.String("actor_id", actor.ID))

	if nerr := s.notifier.Notify(ctx, statusNotification(o, actor)); nerr != nil {
		s.log.Error("status notification not recorded",
			zap.String("order_id", o.ID), zap.String("user_id", Counterparty(o, actor)), zap.Error(nerr))
	}
	return o, nil
}

func statusNotification(o Order, actor Actor) notifications.Notification {
	msg := fmt.Sprintf("Your order #%s status has been updated to: %s", o.ID, o.Status)
	if actor.Role == RoleBuyer {
		msg = fmt.Sprintf("Order #%s has been %s by the buyer", o.ID, o.Status)
	}
	return notifications.New(Counterparty(o, actor), "Order Status Update", msg, notifications.TypeOrder)
}

// GetOrder returns the order with its items if actor may see it.
func (s *Service) GetOrder(ctx context.Context, id string, actor Actor) (Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if actor.Role != RoleAdmin && !party(o, actor) {
		return Order{}, ErrForbidden
	}
	return o, nil
}

// ListOrders returns the orders visible to actor, newest first.
func (s *Service) ListOrders(ctx context.Context, actor Actor) ([]Order, error) {
	var f ListFilter
	switch actor.Role {
	case RoleVendor:
		f.VendorID = actor.ID
	case RoleBuyer:
		f.BuyerID = actor.ID
	case RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	return s.store.ListOrders(ctx, f)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
