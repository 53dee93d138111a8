// Package monitor implements joynrctl top: a termbox-go full-screen
// view that polls a joynrd process's admin /status endpoint and
// redraws a small table of directory/subscription counts, grounded on
// cli/cmd/top.go's renderTable/pollInput/termbox.Init shape (poll on a
// ticker, read keyboard input on its own goroutine, redraw on a
// "done" channel close).
package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	runewidth "github.com/mattn/go-runewidth"
	termbox "github.com/nsf/termbox-go"

	"github.com/joynr-go/joynr/pkg/admin"
)

var columnNames = []string{"Metric", "Value"}
var columnWidths = []int{24, 10}

// Run polls addr's /status endpoint every interval and renders it
// full-screen until the user presses q or Ctrl-C.
func Run(addr string, interval time.Duration) error {
	if err := termbox.Init(); err != nil {
		return err
	}
	defer termbox.Close()

	done := make(chan struct{})
	go pollInput(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last admin.Status
	var lastErr error
	render(last, lastErr)

	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			last, lastErr = fetch(addr)
			render(last, lastErr)
		}
	}
}

func fetch(addr string) (admin.Status, error) {
	resp, err := http.Get(addr + "/status")
	if err != nil {
		return admin.Status{}, err
	}
	defer resp.Body.Close()

	var s admin.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return admin.Status{}, err
	}
	return s, nil
}

func pollInput(done chan<- struct{}) {
	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			if ev.Ch == 'q' || ev.Key == termbox.KeyCtrlC {
				close(done)
				return
			}
		}
	}
}

func render(s admin.Status, err error) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)

	renderHeaders()
	rows := [][2]string{
		{"Local capabilities", fmt.Sprintf("%d", s.LocalCapabilities)},
		{"Cached capabilities", fmt.Sprintf("%d", s.CachedCapabilities)},
		{"Active subscriptions", fmt.Sprintf("%d", s.ActiveSubscriptions)},
		{"Queued subscriptions", fmt.Sprintf("%d", s.QueuedSubscriptions)},
	}
	for i, row := range rows {
		renderRow(i+2, row[0], row[1])
	}
	if err != nil {
		renderText(0, len(rows)+4, fmt.Sprintf("last fetch failed: %v", err))
	}

	termbox.Flush()
}

func renderHeaders() {
	x := 0
	for i, name := range columnNames {
		renderBold(x, 0, name)
		x += columnWidths[i]
	}
}

func renderRow(y int, metric, value string) {
	renderText(0, y, metric)
	renderText(columnWidths[0], y, value)
}

func renderText(x, y int, s string) {
	for _, c := range s {
		termbox.SetCell(x, y, c, termbox.ColorDefault, termbox.ColorDefault)
		x += runewidth.RuneWidth(c)
	}
}

func renderBold(x, y int, s string) {
	for _, c := range s {
		termbox.SetCell(x, y, c, termbox.AttrBold, termbox.ColorDefault)
		x += runewidth.RuneWidth(c)
	}
}
