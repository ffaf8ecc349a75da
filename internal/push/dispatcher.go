package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/securenest/securenest/internal/model"
	"github.com/securenest/securenest/internal/relay"
	"github.com/securenest/securenest/internal/store"
)

// Sender sends a push notification to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the slice of the push store the dispatcher needs.
type SubscriptionStore interface {
	ListByParent(parentID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Dispatcher fans SOS alerts out to the push subscriptions of every parent
// holding the alert's family code. It runs server-side, in addition to the
// live broadcast, so parents whose app is closed still hear about an SOS.
type Dispatcher struct {
	service  Sender
	push     SubscriptionStore
	parents  *store.ParentStore
	children *store.ChildStore
	logger   *slog.Logger
}

func NewDispatcher(svc Sender, pushStore SubscriptionStore, parentStore *store.ParentStore, childStore *store.ChildStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:  svc,
		push:     pushStore,
		parents:  parentStore,
		children: childStore,
		logger:   logger,
	}
}

// HandleSOS delivers an SOS alert to every subscription of every parent
// associated with the alert's family code. Alerts carrying a family code no
// parent holds are logged and dropped.
func (d *Dispatcher) HandleSOS(alert relay.SOSAlert) {
	if alert.FamilyCode == "" {
		d.logger.Warn("sos alert without family code, skipping push fan-out")
		return
	}

	parents, err := d.parents.ListByFamilyCode(alert.FamilyCode)
	if err != nil {
		d.logger.Error("sos fan-out: list parents", "error", err)
		return
	}
	if len(parents) == 0 {
		d.logger.Warn("sos alert for unknown family code", "family_code", alert.FamilyCode)
		return
	}

	payload := SOSPayload(alert.FamilyCode, d.alertBody(alert))

	for _, parent := range parents {
		subs, err := d.push.ListByParent(parent.ID)
		if err != nil {
			d.logger.Error("sos fan-out: list subscriptions", "parent_id", parent.ID, "error", err)
			continue
		}
		for _, sub := range subs {
			if err := d.service.Send(&sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := d.push.DeleteByEndpoint(sub.Endpoint); err != nil {
						d.logger.Error("sos fan-out: drop expired subscription", "endpoint", sub.Endpoint, "error", err)
					}
					continue
				}
				d.logger.Error("sos fan-out: send", "endpoint", sub.Endpoint, "error", err)
			}
		}
	}
}

func (d *Dispatcher) alertBody(alert relay.SOSAlert) string {
	name := alert.FamilyCode
	child, err := d.children.GetByFamilyCode(alert.FamilyCode)
	if err == nil && child != nil {
		name = child.Name
	}
	if alert.Message != "" {
		return fmt.Sprintf("%s: %s", name, alert.Message)
	}
	return fmt.Sprintf("%s needs help", name)
}
