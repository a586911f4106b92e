package ws

// PageScript is the client runtime served at /webpane.js. It opens the
// bridge socket, keeps a promise table keyed by call token, and exposes
// window.webpane.invoke(name, ...args) returning a promise that settles
// when the matching result frame arrives.
const PageScript = `(function () {
  "use strict";
  if (window.webpane) { return; }

  var pending = {};
  var queue = [];
  var nextSeq = 0;
  var sock = null;
  var open = false;

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    sock = new WebSocket(proto + location.host + "/__bridge");

    sock.onmessage = function (ev) {
      var frame = JSON.parse(ev.data);
      if (frame.type === "ready") {
        open = true;
        var backlog = queue; queue = [];
        backlog.forEach(function (text) { sock.send(text); });
        return;
      }
      if (frame.type === "result") {
        var settle = pending[frame.token];
        if (!settle) { return; }
        delete pending[frame.token];
        var value = frame.payload === "" ? undefined : JSON.parse(frame.payload);
        if (frame.ok) { settle.resolve(value); } else { settle.reject(new Error(value)); }
        return;
      }
      if (frame.type === "eval") {
        (0, eval)(frame.script);
        return;
      }
      if (frame.type === "navigate") {
        location.assign(frame.url);
      }
    };

    sock.onclose = function () {
      open = false;
      var stale = pending; pending = {};
      Object.keys(stale).forEach(function (token) {
        stale[token].reject(new Error("bridge closed"));
      });
      setTimeout(connect, 500);
    };
  }

  function invoke(name) {
    var args = Array.prototype.slice.call(arguments, 1);
    var token = "tok_js_" + Date.now().toString(36) + "_" + (nextSeq++);
    var text = JSON.stringify({
      type: "invoke",
      token: token,
      method: name,
      args: JSON.stringify(args)
    });
    return new Promise(function (resolve, reject) {
      pending[token] = { resolve: resolve, reject: reject };
      if (open) { sock.send(text); } else { queue.push(text); }
    });
  }

  window.webpane = { invoke: invoke };
  connect();
})();
`
