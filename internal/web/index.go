package web

// Single-page dashboard: chat box, live cycle progress, cycle history and exposure.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Orbit</title>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
      --bad:#b3261e;
      --good:#1b7f3b;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    h1 { font-size:1.2rem; letter-spacing:.2em; text-transform:uppercase; }
    .grid { display:grid; grid-template-columns:1fr 1fr; gap:1.5rem; }
    .panel { background:var(--panel); padding:1rem; min-height:12rem; }
    .panel h2 { font-size:.8rem; color:var(--ink-mid); text-transform:uppercase; margin-top:0; }
    pre { white-space:pre-wrap; margin:0; }
    .row { border-bottom:1px solid #e2e2e2; padding:.4rem 0; font-size:.8rem; }
    .ok { color:var(--good); }
    .fail { color:var(--bad); }
    .muted { color:var(--ink-soft); }
    form { display:flex; gap:.5rem; margin-top:.75rem; }
    input { flex:1; font:inherit; padding:.4rem; border:1px solid var(--ink-soft); }
    button { font:inherit; padding:.4rem .8rem; background:var(--ink); color:var(--bg); border:0; cursor:pointer; }
  </style>
</head>
<body>
  <h1>Orbit treasury agent</h1>
  <div class="grid">
    <div class="panel">
      <h2>Chat</h2>
      <pre id="reply" class="muted">Ask: rebalance, status, portfolio, price, oracle, strategy, deposit 1000</pre>
      <form id="chat">
        <input id="message" autocomplete="off" placeholder="message" />
        <button type="submit">Send</button>
      </form>
    </div>
    <div class="panel">
      <h2>Live progress</h2>
      <div id="progress"></div>
    </div>
    <div class="panel">
      <h2>Cycles</h2>
      <div id="cycles"></div>
    </div>
    <div class="panel">
      <h2>Exposure</h2>
      <pre id="exposure" class="muted">waiting for the first snapshot</pre>
    </div>
  </div>
  <script>
    const prepend = (id, html, limit) => {
      const el = document.getElementById(id);
      const row = document.createElement('div');
      row.className = 'row';
      row.innerHTML = html;
      el.prepend(row);
      while (el.children.length > limit) el.removeChild(el.lastChild);
    };
    const esc = (s) => String(s || '').replace(/[&<>]/g, (c) => ({'&':'&amp;','<':'&lt;','>':'&gt;'}[c]));

    document.getElementById('chat').addEventListener('submit', async (e) => {
      e.preventDefault();
      const input = document.getElementById('message');
      const reply = document.getElementById('reply');
      reply.textContent = '...';
      const res = await fetch('/chat', {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: JSON.stringify({message: input.value}),
      });
      reply.className = '';
      reply.textContent = res.ok ? (await res.json()).text : await res.text();
      input.value = '';
    });

    new EventSource('/progress/stream').addEventListener('progress', (e) => {
      const p = JSON.parse(e.data);
      const cls = p.stage === 'failed' ? 'fail' : (p.stage === 'completed' ? 'ok' : '');
      prepend('progress', '<span class="muted">' + new Date(p.ts).toLocaleTimeString() + '</span> <span class="' + cls + '">' +
        esc(p.stage) + '</span> ' + esc(p.message), 20);
    });

    new EventSource('/cycles/stream').addEventListener('cycle', (e) => {
      const c = JSON.parse(e.data);
      const cls = c.success ? 'ok' : 'fail';
      prepend('cycles', '<span class="muted">' + new Date(c.ts).toLocaleString() + '</span> <span class="' + cls + '">' +
        esc(c.action) + '</span> ' + esc(c.reason || c.error), 50);
    });

    new EventSource('/exposure/stream').addEventListener('exposure', (e) => {
      const x = JSON.parse(e.data);
      const lines = Object.keys(x.exposure || {}).sort().map((k) => k + ': ' + x.balances[k] + ' (' + x.exposure[k] + '%)');
      const el = document.getElementById('exposure');
      el.className = '';
      el.textContent = lines.join('\n') + '\ntotal: ' + x.total_value;
    });
  </script>
</body>
</html>
`
