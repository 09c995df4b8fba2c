package infra

import "testing"

func TestRealtimeEndpoint_SchemeFollowsBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "plain http gives ws",
			cfg:  Config{API: APIConfig{BaseURL: "http://tower.local:8000"}, Realtime: RealtimeConfig{Path: "/ws/realtime"}},
			want: "ws://tower.local:8000/ws/realtime",
		},
		{
			name: "https gives wss",
			cfg:  Config{API: APIConfig{BaseURL: "https://tower.example.com"}, Realtime: RealtimeConfig{Path: "/ws/realtime"}},
			want: "wss://tower.example.com/ws/realtime",
		},
		{
			name: "trailing slash trimmed",
			cfg:  Config{API: APIConfig{BaseURL: "http://tower.local/"}, Realtime: RealtimeConfig{Path: "/ws/realtime"}},
			want: "ws://tower.local/ws/realtime",
		},
		{
			name: "explicit url wins",
			cfg:  Config{API: APIConfig{BaseURL: "http://tower.local"}, Realtime: RealtimeConfig{URL: "wss://push.other:9000/ws", Path: "/ws/realtime"}},
			want: "wss://push.other:9000/ws",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.RealtimeEndpoint(); got != tc.want {
				t.Fatalf("endpoint = %q, want %q", got, tc.want)
			}
		})
	}
}
