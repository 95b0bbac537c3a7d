package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/wishcli"
)

func TestPrintNotification(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		n    wishcli.Notification
		want string
	}{
		{
			name: "queue",
			n:    wishcli.Notification{Method: common.NotifyQueueChanged, Params: json.RawMessage(`{"length":3}`)},
			want: "15:04:05 queue: 3 wish(es)\n",
		},
		{
			name: "network",
			n:    wishcli.Notification{Method: common.NotifyNetChanged, Params: json.RawMessage(`{"old":"unknown","new":"connected"}`)},
			want: "15:04:05 network: unknown -> connected\n",
		},
		{
			name: "unknown method",
			n:    wishcli.Notification{Method: "other", Params: json.RawMessage(`[1]`)},
			want: "15:04:05 other [1]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printNotification(&buf, at, tt.n)
			if buf.String() != tt.want {
				t.Fatalf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
