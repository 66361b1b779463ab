package web

// Single-page console: balance, order book and forms for the demo ledger.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>GRIDSET Console</title>
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-soft:#9c9c9c; --panel:#f6f6f6; --up:#1a7f37; --down:#b62324; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; background:var(--bg); color:var(--ink); font-family:'Space Mono','JetBrains Mono',monospace; }
    #app { max-width:1100px; margin:0 auto; background:var(--panel); border:3px solid var(--ink); padding:1.5rem; box-shadow:10px 10px 0 rgba(0,0,0,.15); }
    h1 { font-size:1.1rem; letter-spacing:.2em; text-transform:uppercase; }
    .grid { display:grid; grid-template-columns:1fr 1fr 1fr; gap:1rem; }
    .card { border:2px solid var(--ink); padding:1rem; background:var(--bg); }
    .label { color:var(--ink-soft); font-size:.7rem; text-transform:uppercase; letter-spacing:.15em; }
    .value { font-size:1.4rem; font-weight:700; }
    table { width:100%; border-collapse:collapse; font-size:.8rem; }
    th,td { text-align:right; padding:.25rem .5rem; border-bottom:1px solid rgba(0,0,0,.1); }
    .bid { color:var(--up); } .ask { color:var(--down); }
    form { display:flex; gap:.5rem; flex-wrap:wrap; margin-top:.75rem; }
    input,select,button { font-family:inherit; font-size:.8rem; padding:.35rem .5rem; border:2px solid var(--ink); background:var(--bg); }
    button { cursor:pointer; background:var(--ink); color:var(--bg); }
    #err { color:var(--down); font-size:.8rem; min-height:1.2em; }
  </style>
</head>
<body>
<div id="app">
  <h1>GRIDSET Console</h1>
  <div class="grid">
    <div class="card"><div class="label">Total</div><div class="value" id="total">–</div></div>
    <div class="card"><div class="label">Available</div><div class="value" id="available">–</div></div>
    <div class="card"><div class="label">Locked</div><div class="value" id="locked">–</div></div>
  </div>
  <div class="grid" style="margin-top:1rem">
    <div class="card">
      <div class="label">Bids</div>
      <table id="bids"><tr><th>Price</th><th>Qty</th><th>Total</th></tr></table>
    </div>
    <div class="card">
      <div class="label">Asks</div>
      <table id="asks"><tr><th>Price</th><th>Qty</th><th>Total</th></tr></table>
    </div>
    <div class="card">
      <div class="label">Summary</div>
      <table>
        <tr><td>Best bid</td><td class="bid" id="bestbid">–</td></tr>
        <tr><td>Best ask</td><td class="ask" id="bestask">–</td></tr>
        <tr><td>Spread</td><td id="spread">–</td></tr>
        <tr><td>Source</td><td id="live">–</td></tr>
      </table>
    </div>
  </div>
  <div class="card" style="margin-top:1rem">
    <div class="label">Actions</div>
    <form id="transfer">
      <input name="amount" placeholder="amount" required />
      <input name="recipient" placeholder="0x recipient" required />
      <button>Transfer</button>
    </form>
    <form id="order">
      <select name="side"><option value="bid">bid</option><option value="ask">ask</option></select>
      <input name="price" placeholder="price" required />
      <input name="quantity" placeholder="quantity" required />
      <input name="time_slot" placeholder="time slot" required />
      <button>Place order</button>
    </form>
    <form id="slot">
      <input name="slot" placeholder="slot id" required />
      <button>Set slot</button>
      <button type="button" id="reset">Reset demo</button>
    </form>
    <div id="err"></div>
  </div>
</div>
<script>
async function post(url, body) {
  const res = await fetch(url, {method:'POST', headers:{'Content-Type':'application/json'}, body:JSON.stringify(body)});
  const payload = await res.json().catch(() => ({}));
  document.getElementById('err').textContent = res.ok ? '' : (payload.error || res.statusText);
  refresh();
}
function fill(table, rows, cls) {
  table.innerHTML = '<tr><th>Price</th><th>Qty</th><th>Total</th></tr>' + rows.map(r =>
    '<tr><td class="'+cls+'">'+r.price+'</td><td>'+r.quantity+'</td><td>'+(r.total||'')+'</td></tr>').join('');
}
async function refresh() {
  const s = await (await fetch('/api/state')).json();
  for (const k of ['total','available','locked']) document.getElementById(k).textContent = s.balance[k];
  fill(document.getElementById('bids'), s.market.bids, 'bid');
  fill(document.getElementById('asks'), s.market.asks, 'ask');
  document.getElementById('bestbid').textContent = s.market.best_bid.price;
  document.getElementById('bestask').textContent = s.market.best_ask.price;
  document.getElementById('spread').textContent = s.market.spread;
  document.getElementById('live').textContent = s.market.error ? 'error' : (s.market.live ? 'live' : 'fallback');
}
document.getElementById('transfer').onsubmit = e => { e.preventDefault(); const f = new FormData(e.target);
  post('/api/transfer', {amount:f.get('amount'), recipient:f.get('recipient')}); };
document.getElementById('order').onsubmit = e => { e.preventDefault(); const f = new FormData(e.target);
  post('/api/orders', {side:f.get('side'), price:f.get('price'), quantity:f.get('quantity'), time_slot:f.get('time_slot')}); };
document.getElementById('slot').onsubmit = e => { e.preventDefault(); const f = new FormData(e.target);
  post('/api/slot', {slot:f.get('slot')}); };
document.getElementById('reset').onclick = () => post('/api/reset', {});
const stream = new EventSource('/balance/stream');
stream.addEventListener('balance', ev => {
  const b = JSON.parse(ev.data);
  document.getElementById('total').textContent = b.total;
  document.getElementById('available').textContent = b.available;
  document.getElementById('locked').textContent = b.locked;
});
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>`
