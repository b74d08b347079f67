package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleNotification() Notification {
	return Notification{
		AppointmentID: uuid.New(),
		DoctorName:    "Ana Souza",
		DoctorEmail:   "ana@clinic.test",
		PatientName:   "Carlos Lima",
		Date:          "2030-01-02",
		Time:          "09:00",
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls int
	ok := Func(func(context.Context, Notification) error { calls++; return nil })
	boom := errors.New("boom")
	failing := Func(func(context.Context, Notification) error { calls++; return boom })

	err := Multi(ok, nil, failing, ok).Notify(context.Background(), sampleNotification())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestAsyncDeliversWithDetachedContext(t *testing.T) {
	got := make(chan Notification, 1)
	next := Func(func(ctx context.Context, n Notification) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		got <- n
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	n := sampleNotification()
	require.NoError(t, NewAsync(next, time.Second, nil).Notify(ctx, n))
	cancel()

	select {
	case delivered := <-got:
		assert.Equal(t, n.AppointmentID, delivered.AppointmentID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestAsyncRecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	next := Func(func(context.Context, Notification) error { panic("smtp exploded") })

	require.NoError(t, NewAsync(next, time.Second, zap.New(core)).Notify(context.Background(), sampleNotification()))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("notifier panicked").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := sampleNotification()

	require.NoError(t, NewLogNotifier(zap.New(core)).Notify(context.Background(), n))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, Message(n), logs.All()[0].Message)
	assert.Contains(t, Message(n), "Dr(a). Ana Souza with Carlos Lima on 2030-01-02 at 09:00")
}

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "appointments.created")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := sampleNotification()
	require.NoError(t, NewRedisNotifier(rdb, "appointments.created").Notify(ctx, n))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var decoded Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
	assert.Equal(t, n, decoded)
}

type fakeMailClient struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeMailClient) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, email)
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridNotifierSendsToDoctor(t *testing.T) {
	client := &fakeMailClient{status: 202}
	s := newSendGridNotifier(client, SendGridConfig{FromEmail: "no-reply@clinic.test"}, nil)

	require.NoError(t, s.Notify(context.Background(), sampleNotification()))
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "no-reply@clinic.test", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "ana@clinic.test", msg.Personalizations[0].To[0].Address)
	assert.Contains(t, msg.Subject, "2030-01-02")
}

func TestSendGridNotifierEscapesHTML(t *testing.T) {
	n := sampleNotification()
	n.PatientName = `<a href="http://evil.test">click</a>`

	client := &fakeMailClient{status: 202}
	s := newSendGridNotifier(client, SendGridConfig{FromEmail: "no-reply@clinic.test"}, nil)
	require.NoError(t, s.Notify(context.Background(), n))
	require.Len(t, client.sent, 1)

	var htmlBody, plainBody string
	for _, c := range client.sent[0].Content {
		switch c.Type {
		case "text/html":
			htmlBody = c.Value
		case "text/plain":
			plainBody = c.Value
		}
	}
	assert.NotContains(t, htmlBody, "<a href")
	assert.Contains(t, htmlBody, "&lt;a href=&#34;http://evil.test&#34;&gt;click&lt;/a&gt;")
	assert.Contains(t, plainBody, n.PatientName)
}

func TestSendGridNotifierFallbackAndErrors(t *testing.T) {
	n := sampleNotification()
	n.DoctorEmail = ""

	client := &fakeMailClient{status: 202}
	s := newSendGridNotifier(client, SendGridConfig{FromEmail: "no-reply@clinic.test", FallbackTo: "desk@clinic.test"}, nil)
	require.NoError(t, s.Notify(context.Background(), n))
	assert.Equal(t, "desk@clinic.test", client.sent[0].Personalizations[0].To[0].Address)

	noRecipient := newSendGridNotifier(&fakeMailClient{status: 202}, SendGridConfig{}, nil)
	assert.ErrorIs(t, noRecipient.Notify(context.Background(), n), errNoRecipient)

	rejected := newSendGridNotifier(&fakeMailClient{status: 401}, SendGridConfig{}, nil)
	assert.Error(t, rejected.Notify(context.Background(), sampleNotification()))

	assert.Nil(t, NewSendGridNotifier(SendGridConfig{}, nil))
}
