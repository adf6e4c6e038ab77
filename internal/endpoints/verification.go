package endpoints

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
	"github.com/openauthd/engine/internal/tokenpayload"
)

// registerVerification wires the device flow's companion endpoint (spec
// §4.5.5): it reads a user_code, requires an authenticated subject, and
// moves that subject onto the linked device_code entry so the polling
// token endpoint can proceed past authorization_pending. RFC 8628 leaves
// the verification page itself to the authorization server's UI, which is
// the host adapter's job per spec §1's Non-goal on login/consent
// rendering — this pipeline only performs the association.
func registerVerification(reg *handlerdesc.Registry, deps Deps) {
	ep := options.EndpointVerification

	reg.Register(builtin(engine.Kind(ep, engine.PhaseExtract), "verification.extract", 1000,
		extractVerificationRequest))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseValidate), "verification.validate.user_code", 1000,
		validateUserCode))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseHandle), "verification.handle", 1000,
		handleVerification(deps)))

	reg.Register(builtin(engine.Kind(ep, engine.PhaseApply), "verification.apply", 1000,
		applyVerificationResponse))
}

func extractVerificationRequest(ctx context.Context, c *engine.Context) error {
	req := c.Transaction.Request
	v, ok := req.UserCode()
	if !ok || v == "" {
		c.Reject("invalid_request", "user_code is required", "")
		return nil
	}
	req.Set("user_code", normalizeUserCode(v))
	return nil
}

// normalizeUserCode tolerates the separator and casing a user might drop or
// mangle when typing the code in by hand.
func normalizeUserCode(v string) string {
	s := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(v)))
	if len(s) == 8 {
		s = s[:4] + "-" + s[4:]
	}
	return s
}

func validateUserCode(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	userCode, _ := tx.Request.UserCode()
	rec, err := tx.Stores.Tokens.Find(ctx, userCode)
	if err != nil || rec.Type != store.TokenUserCode {
		c.Reject("invalid_request", "user_code is invalid or expired", "")
		return nil
	}
	if time.Now().After(rec.ExpirationDate) {
		c.Reject("invalid_request", "user_code has expired", "")
		return nil
	}
	if rec.Status != store.TokenValid {
		c.Reject("invalid_request", "user_code has already been used", "")
		return nil
	}
	tx.Set(propUserCodeRecord, rec)
	return nil
}

const propUserCodeRecord = "verification.user_code_record"

func handleVerification(deps Deps) engine.HandlerFunc {
	return func(ctx context.Context, c *engine.Context) error {
		tx := c.Transaction
		subject, ok := tx.SubjectPrincipal()
		if !ok {
			challenge := engine.NewContext(engine.KindProcessChallenge, tx)
			if deps.Dispatcher != nil {
				if err := deps.Dispatcher.Dispatch(ctx, challenge); err != nil {
					return err
				}
			}
			subject, ok = tx.SubjectPrincipal()
			if !ok {
				if challenge.IsRejected() {
					c.Reject(challenge.ErrorCode, challenge.ErrorDescription, challenge.ErrorURI)
				} else {
					c.Reject("login_required", "interactive authentication is required", "")
				}
				return nil
			}
		}

		v, _ := tx.Get(propUserCodeRecord)
		userRec, ok := v.(*store.Token)
		if !ok {
			c.Reject("invalid_request", "user_code is invalid or expired", "")
			return nil
		}

		userPrincipal, _, err := tokenpayload.Read(bytes.NewReader(userRec.PayloadReference))
		if err != nil {
			return err
		}
		deviceCodeID, ok := userPrincipal.DeviceCodeID()
		if !ok || deviceCodeID == "" {
			c.Reject("invalid_request", "user_code is not linked to a device authorization", "")
			return nil
		}

		deviceRec, err := tx.Stores.Tokens.Find(ctx, deviceCodeID)
		if err != nil {
			c.Reject("invalid_request", "the linked device authorization has expired", "")
			return nil
		}
		now := time.Now()
		if now.After(deviceRec.ExpirationDate) {
			c.Reject("invalid_request", "the linked device authorization has expired", "")
			return nil
		}

		devicePrincipal, deviceProps, err := tokenpayload.Read(bytes.NewReader(deviceRec.PayloadReference))
		if err != nil {
			return err
		}
		primary := devicePrincipal.Primary()
		primary.AddClaim(claims.NewClaim(claims.DefaultNameClaimType, subject.Name()).
			WithDestinations(claims.DestinationAccessToken, claims.DestinationIdentityToken))

		var buf bytes.Buffer
		if err := tokenpayload.Write(&buf, devicePrincipal, "", deviceProps); err != nil {
			return err
		}
		if err := tx.Stores.Tokens.UpdatePayload(ctx, deviceCodeID, buf.Bytes()); err != nil {
			return err
		}
		if err := tx.Stores.Tokens.Activate(ctx, deviceCodeID); err != nil {
			return err
		}
		if err := tx.Stores.Tokens.Redeem(ctx, userRec.ID, now); err != nil {
			return err
		}

		c.Principal = subject
		c.HandleRequest()
		return nil
	}
}

func applyVerificationResponse(ctx context.Context, c *engine.Context) error {
	tx := c.Transaction
	if c.IsRejected() {
		tx.Response.SetError(c.ErrorCode, c.ErrorDescription, c.ErrorURI)
		c.HandleRequest()
		return nil
	}
	tx.Response.Set("status", "verified")
	c.HandleRequest()
	return nil
}
