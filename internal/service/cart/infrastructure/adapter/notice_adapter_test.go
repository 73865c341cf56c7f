package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/kafka-go"

	"shopcart/internal/service/cart/domain"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type countingNotifier struct{ notices []domain.Notice }

func (c *countingNotifier) Notify(_ context.Context, n domain.Notice) {
	c.notices = append(c.notices, n)
}

func TestNoticeKafkaAdapter(t *testing.T) {
	w := &recordingWriter{}
	notice := domain.NewNotice(domain.NewCartError(domain.OpAdd, domain.KindOutOfStock, 5, domain.ErrOutOfStock))

	NewNoticeKafkaAdapter(w).Notify(context.Background(), notice)

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "5" {
		t.Fatalf("key = %q, want 5", w.msgs[0].Key)
	}
	var got domain.Notice
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(notice, got); diff != "" {
		t.Fatalf("notice mismatch (-want +got):\n%s", diff)
	}
}

func TestNoticeKafkaAdapterSwallowsErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	notice := domain.NewNotice(domain.NewCartError(domain.OpRemove, domain.KindNotFound, 1, domain.ErrNotFound))
	NewNoticeKafkaAdapter(w).Notify(context.Background(), notice)
}

func TestMultiNotifier(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	notice := domain.NewNotice(domain.NewCartError(domain.OpUpdate, domain.KindLookupFailure, 2, nil))

	MultiNotifier{a, NoticeLogAdapter{}, b}.Notify(context.Background(), notice)

	if len(a.notices) != 1 || len(b.notices) != 1 {
		t.Fatalf("delivered %d/%d, want 1/1", len(a.notices), len(b.notices))
	}
}

func TestCartKafkaPublisher(t *testing.T) {
	w := &recordingWriter{}
	cart := domain.Cart{{ID: 1, Amount: 2}, {ID: 3, Amount: 1}}

	if err := NewCartKafkaPublisher(w, "@RocketShoes:cart", "cart-service-a").PublishCart(context.Background(), cart); err != nil {
		t.Fatalf("PublishCart: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "@RocketShoes:cart" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	var event CartUpdatedEvent
	if err := json.Unmarshal(w.msgs[0].Value, &event); err != nil {
		t.Fatal(err)
	}
	if event.TotalAmount != 3 || len(event.Items) != 2 || event.Origin != "cart-service-a" {
		t.Fatalf("event = %+v", event)
	}
}
