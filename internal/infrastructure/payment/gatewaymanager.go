package payment

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// verifier is implemented by gateways whose ability to authenticate
// notifications depends on configuration.
type verifier interface {
	CanVerify() bool
}

// unverified accepts every notification. It exists only outside strict mode.
type unverified struct {
	paymentgateway.PaymentGateway
}

func (unverified) VerifyNotification(context.Context, *paymentgateway.Notification) (bool, error) {
	return true, nil
}

// BuildRegistry constructs every enabled gateway. In strict mode a gateway that
// cannot verify its notifications is left out of the registry.
func BuildRegistry(cfg config.PaymentConfig, onchain OnchainStores, log logger.Interface) (*paymentgateway.Registry, error) {
	var gateways []paymentgateway.PaymentGateway

	if cfg.YooKassa.Enabled {
		g, err := NewYooKassaGateway(cfg.YooKassa, log)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	if cfg.Stripe.Enabled {
		g, err := NewStripeGateway(cfg.Stripe, log)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	if cfg.Telegram.Enabled {
		gateways = append(gateways, NewTelegramGateway(cfg.Telegram, log))
	}
	if cfg.Onchain.Enabled {
		g, err := NewOnchainGateway(cfg.Onchain, onchain, cfg.ExpireAfter, log)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}

	kept := gateways[:0]
	for _, g := range gateways {
		if v, ok := g.(verifier); ok && !v.CanVerify() {
			if cfg.StrictVerification {
				log.Warnw("payment provider disabled: notifications cannot be verified",
					"provider", g.Name(),
				)
				continue
			}
			log.Warnw("payment provider registered without notification verification",
				"provider", g.Name(),
			)
			kept = append(kept, unverified{g})
			continue
		}
		kept = append(kept, g)
	}

	registry, err := paymentgateway.NewRegistry(kept...)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment registry: %w", err)
	}
	log.Infow("payment providers initialized",
		"providers", registry.Names(),
		"strict_verification", cfg.StrictVerification,
	)
	return registry, nil
}
