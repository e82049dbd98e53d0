package slack

import "github.com/Strob0t/specnotify/internal/port/notifier"

func init() {
	notifier.Register(providerName, func(s notifier.Settings) (notifier.Notifier, error) {
		opts := []Option{WithAPIURL(s.APIURL)}
		if s.PageLimit > 0 {
			opts = append(opts, WithPageLimit(s.PageLimit))
		}
		if s.Timeout > 0 {
			opts = append(opts, WithTimeout(s.Timeout))
		}
		return NewClient(s.Token, opts...), nil
	})
}
