package report

// DashboardTemplate is the HTML template for the dashboard page.
// It is embedded as a Go constant; the page has no external assets.
const DashboardTemplate = `<!DOCTYPE html>
<html lang="en-IN" data-theme="{{.Theme}}">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #f9fafb;
    --card: #ffffff;
    --text: #111827;
    --muted: #6b7280;
    --border: #e5e7eb;
    --detail: #f8fafc;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --blue: #2563eb;
    --indigo: #4f46e5;
    --purple: #9333ea;
    --orange: #ea580c;
  }
  [data-theme="dark"] {
    --bg: #030712;
    --card: #111827;
    --text: #f9fafb;
    --muted: #9ca3af;
    --border: #1f2937;
    --detail: #0b1220;
    --accent: #60a5fa;
    --green: #4ade80;
    --red: #f87171;
    --blue: #60a5fa;
    --indigo: #818cf8;
    --purple: #c084fc;
    --orange: #fb923c;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.5;
  }
  header {
    background: var(--card);
    border-bottom: 1px solid var(--border);
    padding: 16px 24px;
    display: flex;
    justify-content: space-between;
    align-items: center;
  }
  header h1 { font-size: 1.5rem; font-weight: 700; }
  .muted { color: var(--muted); font-size: 0.8rem; }
  .toggle { color: var(--accent); font-size: 0.85rem; font-weight: 600; text-decoration: none; }
  main {
    max-width: 1150px;
    margin: 0 auto;
    padding: 32px 24px;
    display: grid;
    grid-template-columns: repeat(auto-fit, minmax(320px, 1fr));
    gap: 32px;
  }
  .section-header { border-bottom: 1px solid var(--border); padding-bottom: 8px; margin-bottom: 16px; }
  .section-header h2 { font-size: 1.1rem; font-weight: 700; }
  .card {
    background: var(--card);
    border: 1px solid var(--border);
    border-radius: 12px;
    margin-bottom: 20px;
    overflow: hidden;
  }
  .card summary { padding: 18px; cursor: pointer; list-style: none; }
  .card .title { font-size: 0.7rem; font-weight: 700; color: var(--muted); text-transform: uppercase; letter-spacing: 0.05em; }
  .card .value { font-size: 1.5rem; font-weight: 700; margin-top: 4px; }
  .tone-green .value { color: var(--green); }
  .tone-red .value { color: var(--red); }
  .tone-blue .value { color: var(--blue); }
  .tone-indigo .value { color: var(--indigo); }
  .tone-purple .value { color: var(--purple); }
  .tone-orange .value { color: var(--orange); }
  .breakdown { width: 100%; border-collapse: collapse; font-size: 0.8rem; background: var(--detail); border-top: 1px solid var(--border); }
  .breakdown td { padding: 6px 16px; }
  .breakdown td.amount { text-align: right; font-family: ui-monospace, monospace; }
  .breakdown tr.base td.label { font-weight: 700; }
  .breakdown tr:not(.base) td.label { padding-left: 24px; color: var(--muted); }
  .breakdown td.negative { color: var(--red); }
  .insight { padding: 14px 16px; background: var(--detail); border-top: 1px solid var(--border); font-size: 0.85rem; }
  .insight h4 { font-size: 0.7rem; text-transform: uppercase; margin-bottom: 4px; }
  .insight .target { color: var(--accent); font-size: 0.75rem; margin-top: 6px; }
  .chart { padding: 12px 16px; text-align: center; }
  .commentary {
    max-width: 1150px;
    margin: 0 auto 48px;
    padding: 24px;
    background: var(--card);
    border: 1px solid var(--border);
    border-radius: 12px;
  }
  .commentary h2 { font-size: 1.1rem; margin-bottom: 12px; }
  .commentary p, .commentary li { margin: 6px 0; }
  .commentary ul, .commentary ol { padding-left: 20px; }
</style>
</head>
<body>
<header>
  <div>
    <h1>{{.Title}}</h1>
    <p class="muted">{{.Subtitle}}</p>
  </div>
  <div style="text-align:right">
    <a class="toggle" href="?theme={{.ToggleTheme}}">Switch to {{.ToggleTheme}} mode</a>
    <p class="muted">{{if .Key}}{{.Key}} &middot; {{end}}{{.GeneratedAt}}</p>
  </div>
</header>
<main>
{{range .Sections}}
  <section class="section">
    <div class="section-header">
      <h2>{{.Title}}</h2>
      <p class="muted">{{.Sub}}</p>
    </div>
    {{range .Cards}}
    <details class="card tone-{{.Tone}}" data-metric="{{.Key}}">
      <summary>
        <div class="title">{{.Title}}</div>
        <div class="value">{{.Value}}</div>
        {{if .Sub}}<div class="muted sub">{{.Sub}}</div>{{end}}
        {{if .Note}}<div class="muted note">{{.Note}}</div>{{end}}
      </summary>
      <table class="breakdown">
        {{range .Rows}}
        <tr{{if .Base}} class="base"{{end}}>
          <td class="label">{{.Label}}</td>
          <td class="amount{{if .Negative}} negative{{end}}">{{.Value}}</td>
        </tr>
        {{end}}
      </table>
      {{if .Chart}}<div class="chart">{{.Chart}}</div>{{end}}
      <div class="insight">
        <h4>What this tells you:</h4>
        <p>{{.Insight}}</p>
        {{if .GoodIf}}<p class="target">Target: {{.GoodIf}}</p>{{end}}
      </div>
    </details>
    {{end}}
  </section>
{{end}}
</main>
{{if .Commentary}}
<section class="commentary">
  <h2>Advisor Commentary</h2>
  {{.Commentary}}
</section>
{{end}}
{{if .Key}}
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/api/v1/ws");
  ws.onopen = function () { ws.send(JSON.stringify({type: "subscribe", data: {{.Key}}})); };
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "metrics") { location.reload(); }
  };
})();
</script>
{{end}}
</body>
</html>
`
