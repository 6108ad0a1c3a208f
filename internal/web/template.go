package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ac-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"oneDecimal": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>AC Controller{{if .Config.DeviceID}} ({{.Config.DeviceID}}){{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.learn { color: orange; font-weight: bold; }
.auto { color: green; font-weight: bold; }
.empty { color: #888; }
.connected { color: green; }
.disconnected, .connecting { color: red; }
</style>
</head>
<body>
<h1>AC Controller{{if .Config.DeviceID}} <small>{{.Config.DeviceID}}</small>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq (printf "%s" .Mode) "LEARN"}}learn{{else}}auto{{end}}">{{.Mode}}</td></tr>
{{if eq (printf "%s" .Mode) "LEARN"}}<tr><th>Learning</th><td>slot {{.Cursor}} of {{len .Slots}}</td></tr>{{end}}
{{if .LastReading.Valid}}<tr><th>Temperature</th><td>{{oneDecimal .LastReading.Temperature}} C</td></tr>
<tr><th>Humidity</th><td>{{oneDecimal .LastReading.Humidity}} %</td></tr>{{else}}<tr><th>Reading</th><td class="empty">none yet</td></tr>{{end}}
<tr><th>Thresholds</th><td>{{oneDecimal .Config.Thresholds.Low}} / {{oneDecimal .Config.Thresholds.High}} C</td></tr>
</table>

<h2>Slots</h2>
<table>
{{range .Slots}}<tr><th>{{.}}</th><td class="{{if index $.Learned .}}auto{{else}}empty{{end}}">{{if index $.Learned .}}learned{{else}}empty{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{.Link}}">{{.Link}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Captures</th><td>{{.Counts.Captures}}</td></tr>
<tr><th>Decode failures</th><td>{{.Counts.DecodeFailures}}</td></tr>
<tr><th>Replays</th><td>{{.Counts.Replays}}</td></tr>
<tr><th>Empty slot requests</th><td>{{.Counts.EmptySlots}}</td></tr>
<tr><th>Sensor failures</th><td>{{.Counts.SensorFailures}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}} ({{.Counts.Unrecognized}} unrecognized)</td></tr>
<tr><th>Button toggles</th><td>{{.Counts.Toggles}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycle</th><td>{{.Config.CycleMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sample interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Signal layout</th><td>{{.Config.Layout}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/api/v1/status">JSON</a> | <a href="/api/v1/events">Events</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
