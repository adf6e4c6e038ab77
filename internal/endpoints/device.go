package endpoints

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
	"github.com/openauthd/engine/internal/tokenpayload"
)

// registerDevice wires the device authorization endpoint (spec §4.5.5,
// RFC 8628 §3.1), grounded on the teacher's device-flow handlers
// (deviceflowhandlers.go) generalized from dex's fixed verification-URL
// template to the engine's configurable Options.Endpoints.
func registerDevice(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointDevice

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "device.extract", 1000, extractDeviceRequest))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "device.validate.client", 1000, validateDeviceClient(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseHandle), "device.handle", 1000, handleDevice(deps)))
	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "device.apply", 1000, applyDeviceResponse))
}

func extractDeviceRequest(ctx context.Context, c *engine.Context) error {
	if v, ok := c.Transaction.Request.ClientID(); !ok || v == "" {
		c.Reject("invalid_request", "client_id is required", "")
		return nil
	}
	return nil
}

func validateDeviceClient(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		clientID, _ := tx.Request.ClientID()
		app, err := tx.Stores.Applications.FindByClientID(ctx, clientID)
		if err != nil || app == nil {
			c.Reject("invalid_client", "unknown client", "")
			return nil
		}
		if ok, reason := checkEndpointAndGrantPermissions(tx.Options, app, options.EndpointDevice, options.GrantDeviceCode); !ok {
			c.Reject("unauthorized_client", reason, "")
			return nil
		}
		tx.SetApplication(app)
		return nil
	}
}

func handleDevice(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		app, _ := tx.Application()
		scopes := requestedScopes(tx.Options, app, tx.Request.Scopes())

		now := time.Now()
		userCode, err := randomUserCode()
		if err != nil {
			return err
		}

		// The device_code and user_code entries share the one principal so
		// verification can move the subject from the user_code to the
		// device_code by id, per spec §4.5.5.
		p := claims.NewPrincipal(claims.DefaultAuthenticationType)
		p.SetAudiences(app.ClientID)
		p.SetPresenters(app.ClientID)
		p.SetScopes(scopes...)

		// The device_code entry starts inactive: the token endpoint must
		// see authorization_pending until verification activates it.
		deviceIssued, err := deps.Issuer.IssuePending(ctx, clonePrincipal(p), claims.DestinationDeviceCode, now)
		if err != nil {
			return err
		}

		// The user_code record is keyed by the short, human-typeable code
		// itself rather than a generated uuid, so the verification endpoint
		// can look it up directly by what the user actually types; it is
		// filed by hand rather than through Issuer.Issue, which always
		// generates its own id.
		userPrincipal := clonePrincipal(p)
		userPrincipal.SetDeviceCodeID(deviceIssued.Record.ID)
		userPrincipal.SetTokenID(userCode)
		userPrincipal.SetTokenUsage(claims.DestinationUserCode)
		expiry := now.Add(tx.Options.Lifetime(claims.DestinationUserCode, 15*time.Minute))
		userPrincipal.SetExpirationDate(expiry)

		var buf bytes.Buffer
		if err := tokenpayload.Write(&buf, userPrincipal, "", map[string]string{"id": userCode}); err != nil {
			return err
		}
		userRec := &store.Token{
			ID:               userCode,
			ClientID:         app.ClientID,
			Type:             store.TokenUserCode,
			Status:           store.TokenValid,
			PayloadReference: buf.Bytes(),
			CreationDate:     now,
			ExpirationDate:   expiry,
		}
		if err := tx.Stores.Tokens.Create(ctx, userRec); err != nil {
			return err
		}

		tx.Set(propUserCode, userCode)
		tx.Set(propDeviceCode, deviceIssued.Value)
		tx.Set(propDeviceInterval, int64(deviceCodePollInterval.Seconds()))
		tx.Set(propDeviceExpiresIn, int64(tx.Options.Lifetime(claims.DestinationDeviceCode, 15*time.Minute).Seconds()))
		c.HandleRequest()
		return nil
	}
}

const (
	propUserCode        = "device.user_code"
	propDeviceCode      = "device.device_code"
	propDeviceInterval  = "device.interval"
	propDeviceExpiresIn = "device.expires_in"
)

func randomUserCode() (string, error) {
	const alphabet = "BCDFGHJKLMNPQRSTVWXZ"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 9)
	for i := 0; i < 8; i++ {
		if i == 4 {
			out[i] = '-'
		}
		idx := int(buf[i]) % len(alphabet)
		if i < 4 {
			out[i] = alphabet[idx]
		} else {
			out[i+1] = alphabet[idx]
		}
	}
	return fmt.Sprintf("%s", out), nil
}

func applyDeviceResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
		c.HandleRequest()
		return nil
	}
	deviceCode, _ := tx.Get(propDeviceCode)
	userCode, _ := tx.Get(propUserCode)
	interval, _ := tx.Get(propDeviceInterval)
	expiresIn, _ := tx.Get(propDeviceExpiresIn)

	tx.Response.Set("device_code", deviceCode)
	tx.Response.Set("user_code", userCode)
	tx.Response.Set("verification_uri", tx.Options.Endpoints[options.EndpointVerification])
	tx.Response.Set("interval", interval)
	tx.Response.Set("expires_in", expiresIn)
	c.HandleRequest()
	return nil
}
