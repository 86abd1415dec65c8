package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muthu-raja18/QuickServe-sub001/notify"
	"github.com/muthu-raja18/QuickServe-sub001/notify/mocks"
)

func TestEmitter_Delivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	sink.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, msg notify.Message) error {
			if msg.ID == "" || msg.CreatedAt.IsZero() {
				t.Fatalf("expected id and timestamp to be filled, got %+v", msg)
			}
			if msg.RecipientID != "seeker-1" || msg.Kind != notify.KindRequestAccepted {
				t.Fatalf("unexpected message %+v", msg)
			}
			if _, ok := ctx.Deadline(); !ok {
				t.Fatalf("expected bounded delivery context")
			}
			return nil
		},
	)

	notify.NewEmitter(sink, nil).Emit(context.Background(), notify.Message{
		RecipientID: "seeker-1",
		Kind:        notify.KindRequestAccepted,
		Payload:     map[string]any{"request_id": "r-1"},
	})
}

func TestEmitter_SwallowsAndLogsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	core, logs := observer.New(zap.WarnLevel)

	sink.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	notify.NewEmitter(sink, zap.New(core)).Emit(context.Background(), notify.Message{
		RecipientID: "prov-1",
		Kind:        notify.KindRequestCreated,
	})

	if logs.FilterMessage("notify: delivery failed").Len() != 1 {
		t.Fatalf("expected one delivery failure log, got %v", logs.All())
	}
}

func TestEmitter_SurvivesCancelledCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	sink.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ notify.Message) error {
			return ctx.Err()
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notify.NewEmitter(sink, nil).WithTimeout(time.Second).Emit(ctx, notify.Message{
		RecipientID: "prov-1",
		Kind:        notify.KindRequestCancelled,
	})
}

func TestEmitter_DropsWithoutRecipient(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	notify.NewEmitter(sink, nil).Emit(context.Background(), notify.Message{Kind: notify.KindRequestExpired})
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *notify.Emitter
	e.Emit(context.Background(), notify.Message{RecipientID: "x"})
}
