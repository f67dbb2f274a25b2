package web

// controlPage is the embedded single-page control panel. It talks to the
// /api endpoints and subscribes to /ws/live for state updates.
const controlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pin Controller</title>
<style>
body { font-family: sans-serif; margin: 2em; background: #f4f4f4; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; background: #fff; }
td, th { border: 1px solid #ccc; padding: 0.4em 0.8em; }
input { width: 4em; }
button { margin: 0 0.2em; }
#log { margin-top: 1em; font-family: monospace; font-size: 0.85em; color: #555; }
</style>
</head>
<body>
<h1>Pin Controller</h1>
<div>
  Pin <input id="pin" type="number" value="13">
  Value <input id="value" type="number" value="1">
  <button onclick="call('POST','/api/pin/set?pin='+pin.value+'&value='+value.value)">Set</button>
  <button onclick="call('GET','/api/pin/get?pin='+pin.value)">Get</button>
  <button onclick="call('POST','/api/pin/toggle?pin='+pin.value)">Toggle</button>
  <button onclick="call('POST','/api/pin/pwm?pin='+pin.value+'&value='+value.value)">PWM</button>
  <button onclick="call('POST','/api/reset')">Reset all</button>
</div>
<h2>Configured pins</h2>
<table id="states"><tr><th>Pin</th><th>Mode</th><th>Value</th></tr></table>
<div id="log"></div>
<script>
const states = {};
function redraw() {
  const table = document.getElementById('states');
  table.innerHTML = '<tr><th>Pin</th><th>Mode</th><th>Value</th></tr>';
  Object.keys(states).sort((a,b)=>a-b).forEach(p => {
    const s = states[p];
    table.innerHTML += '<tr><td>'+p+'</td><td>'+s.mode+'</td><td>'+s.value+'</td></tr>';
  });
}
function call(method, url) {
  fetch(url, {method: method}).then(r => r.json()).then(r => {
    document.getElementById('log').textContent = JSON.stringify(r);
    refresh();
  });
}
function refresh() {
  fetch('/api/status').then(r => r.json()).then(doc => {
    Object.keys(states).forEach(k => delete states[k]);
    (doc.pinStates || []).forEach(s => states[s.pin] = s);
    redraw();
  });
}
const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws/live');
ws.onmessage = e => {
  const ev = JSON.parse(e.data);
  if (ev.type === 'pinState') { states[ev.pin] = ev; redraw(); }
  if (ev.type === 'pinsReset') { refresh(); }
};
refresh();
</script>
</body>
</html>
`
