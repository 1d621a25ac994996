package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/notification"
	"github.com/frahmantamala/docflow/internal/workflow"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSink struct {
	mu       sync.Mutex
	messages []notification.Message
	failures int32
	err      error
}

func (s *recordingSink) Notify(_ context.Context, msg notification.Message) error {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSink) Delivered() []notification.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Message(nil), s.messages...)
}

type fakeQueue struct {
	messages []notification.Message
	full     bool
}

func (q *fakeQueue) Enqueue(msg notification.Message) error {
	if q.full {
		return notification.ErrQueueFull
	}
	q.messages = append(q.messages, msg)
	return nil
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func approvedOutcome() *workflow.Outcome {
	res := workflow.Resource{Kind: workflow.KindRecord, ID: 11, OrganizationID: 1, Status: workflow.StatusApproved, CreatorID: 1}
	return &workflow.Outcome{
		Resource: res,
		Action:   workflow.ActionApprove,
		From:     workflow.StatusPending,
		To:       workflow.StatusApproved,
		ActorID:  2,
		Notifications: []workflow.Notification{
			{UserID: 1, Template: workflow.TemplateApproved},
		},
		Transition: workflow.TransitionRecord{CreatedAt: time.Now()},
	}
}

var _ = Describe("Dispatcher", func() {
	It("delivers queued messages through the sink", func() {
		sink := &recordingSink{}
		d := notification.NewDispatcher(sink, notification.DispatcherConfig{MaxWorkers: 2, JobQueueSize: 10}, testLogger)
		defer d.Shutdown()

		for i := 0; i < 5; i++ {
			Expect(d.Enqueue(notification.Message{ID: "m", UserID: int64(i), Template: "t"})).To(Succeed())
		}
		Eventually(sink.Delivered).Should(HaveLen(5))
	})

	It("retries temporary failures", func() {
		sink := &recordingSink{failures: 2, err: &notification.StatusError{StatusCode: http.StatusBadGateway}}
		d := notification.NewDispatcher(sink, notification.DispatcherConfig{MaxWorkers: 1, MaxAttempts: 3, RetryBackoff: time.Millisecond}, testLogger)
		defer d.Shutdown()

		Expect(d.Enqueue(notification.Message{ID: "retry"})).To(Succeed())
		Eventually(sink.Delivered).Should(HaveLen(1))
	})

	It("gives up on permanent failures", func() {
		sink := &recordingSink{failures: 1, err: &notification.StatusError{StatusCode: http.StatusBadRequest}}
		d := notification.NewDispatcher(sink, notification.DispatcherConfig{MaxWorkers: 1, RetryBackoff: time.Millisecond}, testLogger)
		defer d.Shutdown()

		Expect(d.Enqueue(notification.Message{ID: "bad"})).To(Succeed())
		Consistently(sink.Delivered, 50*time.Millisecond).Should(BeEmpty())
	})
})

var _ = Describe("WebhookSink", func() {
	It("posts the message as JSON", func() {
		received := make(chan notification.Message, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var msg notification.Message
			Expect(json.NewDecoder(r.Body).Decode(&msg)).To(Succeed())
			Expect(r.Header.Get("X-Notification-ID")).To(Equal("abc"))
			received <- msg
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		sink := notification.NewWebhookSink(notification.WebhookConfig{URL: server.URL, RatePerSecond: 100, Burst: 1}, testLogger)
		Expect(sink.Notify(context.Background(), notification.Message{ID: "abc", UserID: 3, Template: "resource_approved"})).To(Succeed())
		Eventually(received).Should(Receive(HaveField("UserID", int64(3))))
	})

	It("reports non-2xx responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		sink := notification.NewWebhookSink(notification.WebhookConfig{URL: server.URL}, testLogger)
		err := sink.Notify(context.Background(), notification.Message{ID: "x"})
		var status *notification.StatusError
		Expect(errors.As(err, &status)).To(BeTrue())
		Expect(status.Temporary()).To(BeTrue())
	})
})

var _ = Describe("EventHandler", func() {
	It("turns transition notifications into messages", func() {
		queue := &fakeQueue{}
		h := notification.NewEventHandler(queue, testLogger)

		Expect(h.HandleTransition(context.Background(), events.NewTransitionEvent(approvedOutcome()))).To(Succeed())
		Expect(queue.messages).To(HaveLen(1))
		Expect(queue.messages[0].UserID).To(Equal(int64(1)))
		Expect(queue.messages[0].Template).To(Equal(workflow.TemplateApproved))
	})

	It("reports dropped messages", func() {
		h := notification.NewEventHandler(&fakeQueue{full: true}, testLogger)
		err := h.HandleTransition(context.Background(), events.NewTransitionEvent(approvedOutcome()))
		Expect(errors.Is(err, notification.ErrQueueFull)).To(BeTrue())
	})

	It("is wired to the bus", func() {
		queue := &fakeQueue{}
		bus := events.NewEventBus(testLogger)
		notification.NewEventHandler(queue, testLogger).RegisterEventHandlers(bus)

		Expect(bus.PublishSync(context.Background(), events.NewInvitationCreatedEvent(4, "new@example.com", "tok", time.Now().Add(time.Hour)))).To(Succeed())
		Expect(queue.messages).To(ConsistOf(HaveField("Email", "new@example.com")))
	})
})

var _ = Describe("Forwarder", func() {
	It("publishes events under the configured prefix", func() {
		pub := &fakePublisher{}
		bus := events.NewEventBus(testLogger)
		notification.NewForwarder(pub, "docflow", testLogger).Register(bus)

		Expect(bus.PublishSync(context.Background(), events.NewTransitionEvent(approvedOutcome()))).To(Succeed())
		Expect(pub.subjects).To(Equal([]string{"docflow.workflow.approved"}))

		var payload map[string]any
		Expect(json.Unmarshal(pub.payloads[0], &payload)).To(Succeed())
		Expect(payload).To(HaveKeyWithValue("kind", "record"))
	})
})

var _ = Describe("Subscriber", func() {
	It("restores forwarded events and runs local handlers", func() {
		pub := &fakePublisher{}
		source := events.NewEventBus(testLogger)
		notification.NewForwarder(pub, "docflow", testLogger).Register(source)
		Expect(source.PublishSync(context.Background(), events.NewTransitionEvent(approvedOutcome()))).To(Succeed())
		Expect(source.PublishSync(context.Background(), events.NewInvitationCreatedEvent(4, "new@example.com", "tok", time.Now().Add(time.Hour)))).To(Succeed())

		queue := &fakeQueue{}
		sink := events.NewEventBus(testLogger)
		notification.NewEventHandler(queue, testLogger).RegisterEventHandlers(sink)
		sub := notification.NewSubscriber(sink, "docflow", testLogger)

		for i := range pub.subjects {
			Expect(sub.Handle(context.Background(), pub.subjects[i], pub.payloads[i])).To(Succeed())
		}
		Expect(queue.messages).To(HaveLen(2))
		Expect(queue.messages[0].Template).To(Equal(workflow.TemplateApproved))
		Expect(queue.messages[1].Email).To(Equal("new@example.com"))
	})

	It("decodes transitions into their concrete type", func() {
		data, err := json.Marshal(events.NewTransitionEvent(approvedOutcome()))
		Expect(err).NotTo(HaveOccurred())

		event, err := notification.Decode(events.EventTypeApproved, data)
		Expect(err).NotTo(HaveOccurred())
		transition, ok := event.(*events.TransitionEvent)
		Expect(ok).To(BeTrue())
		Expect(transition.ResourceID).To(Equal(int64(11)))
		Expect(transition.Notifications).To(HaveLen(1))
	})

	It("refuses a payload published under the wrong subject", func() {
		data, err := json.Marshal(events.NewTransitionEvent(approvedOutcome()))
		Expect(err).NotTo(HaveOccurred())

		_, err = notification.Decode(events.EventTypeRejected, data)
		Expect(err).To(HaveOccurred())
	})
})
