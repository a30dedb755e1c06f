package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/kv"
	"github.com/fixoo-edu/fixoo_api/internal/notification"
)

type fakeDirectory struct {
	taken map[string]bool
}

func (d fakeDirectory) Exists(_ context.Context, _ Channel, identifier string) (bool, error) {
	return d.taken[identifier], nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, m)
	return nil
}

type fixture struct {
	svc      *Service
	mr       *miniredis.Miniredis
	notifier *recordingNotifier
}

func newFixture(t *testing.T, taken ...string) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dir := fakeDirectory{taken: map[string]bool{}}
	for _, id := range taken {
		dir.taken[id] = true
	}
	notifier := &recordingNotifier{}
	svc := NewService(kv.New(client), dir, notifier,
		Config{AppName: "Fixoo", MaxAttempts: 3}, nil,
		WithCodeGenerator(func(int) (string, error) { return "482913", nil }),
	)
	return fixture{svc: svc, mr: mr, notifier: notifier}
}

const phone = "+998901234567"

func TestSendVerifyAndConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: phone}

	require.NoError(t, f.svc.Send(ctx, req))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification.ChannelSMS, f.notifier.sent[0].Channel)
	assert.Equal(t, phone, f.notifier.sent[0].Destination)
	assert.Contains(t, f.notifier.sent[0].Body, "482913")

	stored, err := f.mr.Get("otp:reg:code:" + phone)
	require.NoError(t, err)
	assert.Equal(t, `"482913"`, stored)
	assert.InDelta(t, 600, f.mr.TTL("otp:reg:code:"+phone).Seconds(), 1)

	err = f.svc.Verify(ctx, req, "000000")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)

	require.NoError(t, f.svc.Verify(ctx, req, "482913"))
	assert.False(t, f.mr.Exists("otp:reg:code:"+phone))
	flag, err := f.mr.Get("otp:reg:cfm:" + phone)
	require.NoError(t, err)
	assert.JSONEq(t, `{"verified":true}`, flag)

	ok, err := f.svc.Confirmed(ctx, PurposeRegister, ChannelPhone, phone)
	require.NoError(t, err)
	assert.True(t, ok)

	// Single use: the code is gone after the first success.
	err = f.svc.Verify(ctx, req, "482913")
	assert.ErrorIs(t, err, apperr.ErrExpiredOrMissing)

	require.NoError(t, f.svc.Consume(ctx, PurposeRegister, ChannelPhone, phone))
	ok, err = f.svc.Confirmed(ctx, PurposeRegister, ChannelPhone, phone)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendRejectsOutstandingCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: phone}

	require.NoError(t, f.svc.Send(ctx, req))
	err := f.svc.Send(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "Code already sent to user", apperr.Message(err))
	assert.Len(t, f.notifier.sent, 1)

	// A different purpose for the same identifier is independent.
	f2 := newFixture(t, phone)
	require.NoError(t, f2.svc.Send(ctx, Request{Purpose: PurposeResetPassword, Channel: ChannelPhone, Identifier: phone}))
}

func TestSendOwnershipPreconditions(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, phone, "taken@fixoo.uz")
	err := f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: phone})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "Phone already used", apperr.Message(err))

	err = f.svc.Send(ctx, Request{Purpose: PurposeEditEmail, Channel: ChannelEmail, Identifier: "Taken@Fixoo.uz"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "Email already used", apperr.Message(err))

	err = f.svc.Send(ctx, Request{Purpose: PurposeResetPassword, Channel: ChannelPhone, Identifier: "+998900000000"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.mr.Keys())
}

func TestCodeExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{Purpose: PurposeResetPassword, Channel: ChannelEmail, Identifier: "student@fixoo.uz"}
	f.svc.dir = fakeDirectory{taken: map[string]bool{"student@fixoo.uz": true}}

	require.NoError(t, f.svc.Send(ctx, req))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification.ChannelEmail, f.notifier.sent[0].Channel)
	assert.Contains(t, f.notifier.sent[0].HTML, "482913")

	f.mr.FastForward(601 * time.Second)
	err := f.svc.Verify(ctx, req, "482913")
	assert.ErrorIs(t, err, apperr.ErrExpiredOrMissing)

	// Expiry frees the slot for a new code.
	require.NoError(t, f.svc.Send(ctx, req))
}

func TestConfirmationExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: phone}

	require.NoError(t, f.svc.Send(ctx, req))
	require.NoError(t, f.svc.Verify(ctx, req, "482913"))

	f.mr.FastForward(601 * time.Second)
	ok, err := f.svc.Confirmed(ctx, PurposeRegister, ChannelPhone, phone)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTooManyAttemptsBurnsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: phone}
	require.NoError(t, f.svc.Send(ctx, req))

	assert.ErrorIs(t, f.svc.Verify(ctx, req, "111111"), apperr.ErrInvalidCode)
	assert.ErrorIs(t, f.svc.Verify(ctx, req, "222222"), apperr.ErrInvalidCode)
	err := f.svc.Verify(ctx, req, "333333")
	assert.ErrorIs(t, err, apperr.ErrTooManyAttempts)
	assert.Equal(t, 429, apperr.Status(err))

	assert.ErrorIs(t, f.svc.Verify(ctx, req, "482913"), apperr.ErrExpiredOrMissing)

	// A fresh code starts a fresh attempt budget.
	require.NoError(t, f.svc.Send(ctx, req))
	assert.ErrorIs(t, f.svc.Verify(ctx, req, "111111"), apperr.ErrInvalidCode)
	require.NoError(t, f.svc.Verify(ctx, req, "482913"))
}

func TestFailedDispatchReleasesCode(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("provider down")
	ctx := context.Background()
	req := Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: phone}

	err := f.svc.Send(ctx, req)
	require.Error(t, err)
	assert.Equal(t, 500, apperr.Status(err))
	assert.False(t, f.mr.Exists("otp:reg:code:"+phone))

	f.notifier.err = nil
	require.NoError(t, f.svc.Send(ctx, req))
}

func TestEmailIdentifiersAreCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelEmail, Identifier: " New@Fixoo.UZ "}))
	assert.True(t, f.mr.Exists("otp:reg_email:code:new@fixoo.uz"))

	require.NoError(t, f.svc.Verify(ctx, Request{Purpose: PurposeRegister, Channel: ChannelEmail, Identifier: "new@fixoo.uz"}, "482913"))
	ok, err := f.svc.Confirmed(ctx, PurposeRegister, ChannelEmail, "NEW@fixoo.uz")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelPhone})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Phone is required", apperr.Message(err))

	err = f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: "email_other@x.com"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Phone must be a valid phone number", apperr.Message(err))

	err = f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelEmail, Identifier: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = f.svc.Send(ctx, Request{Purpose: "login", Channel: ChannelPhone, Identifier: phone})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: "fax", Identifier: phone})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSendCannotPlantConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelEmail, Identifier: "cfm_victim@x.com"}))
	ok, err := f.svc.Confirmed(ctx, PurposeRegister, ChannelEmail, "victim@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.Send(ctx, Request{Purpose: PurposeEditEmail, Channel: ChannelEmail, Identifier: "cfm_victim@x.com"}))
	ok, err = f.svc.Confirmed(ctx, PurposeEditEmail, ChannelEmail, "victim@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	err = f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: "cfm_" + phone})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	ok, err = f.svc.Confirmed(ctx, PurposeRegister, ChannelPhone, phone)
	require.NoError(t, err)
	assert.False(t, ok)

	// A phone request never occupies the email namespace.
	err = f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelPhone, Identifier: "email_other@x.com"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, f.svc.Send(ctx, Request{Purpose: PurposeRegister, Channel: ChannelEmail, Identifier: "other@x.com"}))
}

func TestRandomCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := RandomCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', code)
		}
	}
}
