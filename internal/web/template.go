package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/quadrature-encoder/internal/status"
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
	"micros": func(d time.Duration) int64 {
		return d.Microseconds()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Quadrature Encoder</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.position { font-size: 1.6em; font-weight: bold; }
.running { color: green; }
.stopped { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.fault { color: orange; }
</style>
</head>
<body>
<h1>Quadrature Encoder</h1>

<h2>Position</h2>
<table>
<tr><th>Position</th><td id="position" class="position">{{.Position}}</td></tr>
<tr><th>Latency</th><td id="latency">{{micros .Latency}} µs</td></tr>
<tr><th>Phase</th><td class="{{if eq .Phase.String "running"}}running{{else}}stopped{{end}}">{{.Phase}}</td></tr>
<tr><th>Last error</th><td id="last-error" class="{{if ne .LastError.String "none"}}fault{{end}}">{{.LastError}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Moves</th><td id="moves">{{.Counts.Moves}}</td></tr>
<tr><th>Errors</th><td id="errors">{{.Counts.Errors}}</td></tr>
<tr><th>Protocol violations</th><td>{{.Counts.ProtocolViolations}}</td></tr>
<tr><th>I/O failures</th><td>{{.Counts.IOFailures}}</td></tr>
<tr><th>Overflows</th><td>{{.Counts.Overflows}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Sink</th><td>{{.Config.Sink}}</td></tr>
<tr><th>Broker</th><td class="{{if .BrokerConnected}}connected{{else}}disconnected{{end}}">{{.Config.Broker}} ({{if .BrokerConnected}}connected{{else}}disconnected{{end}})</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02 15:04:05 UTC"}}</td></tr>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>Lines</th><td>{{.Config.Backend}} {{.Config.Chip}} A={{.Config.ChanA}} B={{.Config.ChanB}}</td></tr>
<tr><th>Priority</th><td>{{.Config.Priority}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
</table>

<script>
(function() {
  function poll() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(j) {
      var s = j.status;
      document.getElementById("position").textContent = s.position;
      document.getElementById("latency").textContent = s.latency_us + " µs";
      document.getElementById("last-error").textContent = s.last_error;
      document.getElementById("moves").textContent = s.counts.moves;
      document.getElementById("errors").textContent = s.counts.errors;
    }).catch(function() {});
  }
  setInterval(poll, 1000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
