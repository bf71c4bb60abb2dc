package main

import (
	"fmt"
	"html/template"
	"net/http"
	"time"
)

// =============================================================================
// HTML TEMPLATE
// =============================================================================

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Vehicle Control Server</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: 'Segoe UI', system-ui, sans-serif;
            background: linear-gradient(135deg, #0d1117 0%, #161b22 50%, #21262d 100%);
            color: #e6edf3;
            min-height: 100vh;
            padding: 40px;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { color: #58a6ff; margin-bottom: 10px; font-size: 2.5em; }
        .subtitle { color: #8b949e; margin-bottom: 40px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(350px, 1fr)); gap: 20px; }
        .card {
            background: rgba(255,255,255,0.05);
            border-radius: 12px;
            padding: 25px;
            border: 1px solid rgba(255,255,255,0.1);
        }
        .card h2 {
            display: flex;
            align-items: center;
            gap: 10px;
            margin-bottom: 15px;
            color: #58a6ff;
        }
        .endpoint {
            background: rgba(0,0,0,0.3);
            padding: 10px 15px;
            border-radius: 6px;
            margin: 8px 0;
            font-family: monospace;
            font-size: 13px;
        }
        .endpoint .method { color: #7ee787; font-weight: bold; }
        .endpoint .path { color: #79c0ff; }
        .status { margin-top: 30px; }
        .status-item {
            display: flex;
            justify-content: space-between;
            padding: 10px 0;
            border-bottom: 1px solid rgba(255,255,255,0.1);
        }
        .status-value { color: #7ee787; font-weight: bold; }
    </style>
</head>
<body>
    <div class="container">
        <h1>🚗 Vehicle Control Server</h1>
        <p class="subtitle">Realtime control, status and video for a remotely operated vehicle</p>

        <div class="grid">
            <div class="card">
                <h2>🎮 Control</h2>
                <div class="endpoint"><span class="method">WS</span> <span class="path">/ws/control</span></div>
                <div class="endpoint"><span class="method">GET</span> <span class="path">/api/car/status</span></div>
                <div class="endpoint"><span class="method">POST</span> <span class="path">/api/car/control?command=FORWARD</span></div>
                <div class="endpoint"><span class="method">POST</span> <span class="path">/api/car/emergency-stop</span></div>
            </div>

            <div class="card">
                <h2>📊 Status</h2>
                <div class="endpoint"><span class="method">WS</span> <span class="path">/ws/status</span></div>
                <div class="endpoint"><span class="method">GET</span> <span class="path">/api/car/connection-status</span></div>
                <div class="endpoint"><span class="method">GET</span> <span class="path">/health</span></div>
                <div class="endpoint"><span class="method">GET</span> <span class="path">/metrics</span></div>
            </div>

            <div class="card">
                <h2>🎥 Video</h2>
                <div class="endpoint"><span class="method">WS</span> <span class="path">/ws/video</span></div>
                <div class="endpoint"><span class="method">GET</span> <span class="path">/api/video/stream</span></div>
                <div class="endpoint"><span class="method">GET</span> <span class="path">/api/video/frame</span></div>
                <div class="endpoint"><span class="method">POST</span> <span class="path">/api/video/record/start</span></div>
            </div>

            <div class="card">
                <h2>📈 Live Status</h2>
                <div class="status" id="status">Loading...</div>
            </div>
        </div>
    </div>

    <script>
    async function updateStatus() {
        try {
            const res = await fetch('/health');
            const data = await res.json();
            document.getElementById('status').innerHTML =
                '<div class="status-item"><span>Status</span><span class="status-value">' + data.status + '</span></div>' +
                '<div class="status-item"><span>Uptime</span><span class="status-value">' + data.uptime + '</span></div>' +
                '<div class="status-item"><span>Control sessions</span><span class="status-value">' + data.sessions.control + '</span></div>' +
                '<div class="status-item"><span>Status listeners</span><span class="status-value">' + data.sessions.status + '</span></div>' +
                '<div class="status-item"><span>Video sessions</span><span class="status-value">' + data.sessions.video + '</span></div>' +
                '<div class="status-item"><span>Camera</span><span class="status-value">' + (data.modules.camera.is_live ? 'LIVE' : 'SYNTHETIC') + '</span></div>';
        } catch(e) {
            document.getElementById('status').innerHTML = '<div class="status-item"><span>Error</span><span>UNAVAILABLE</span></div>';
        }
    }
    updateStatus();
    setInterval(updateStatus, 5000);
    </script>
</body>
</html>`

func (s *VehicleServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	tmpl := template.Must(template.New("index").Parse(indexHTML))
	tmpl.Execute(w, map[string]interface{}{
		"APIPort": s.config.APIPort,
	})
}

// =============================================================================
// BANNER
// =============================================================================

func printBanner(config *Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════════════╗
║            🚗 VEHICLE CONTROL SERVER v1.2 🚗                 ║
╚══════════════════════════════════════════════════════════════╝

  🌐 ENDPOINTS

  HTTP API:        http://0.0.0.0:%d
  Health:          http://0.0.0.0:%d/health
  Metrics:         http://0.0.0.0:%d/metrics

  Control WS:      ws://0.0.0.0:%d/ws/control
  Status WS:       ws://0.0.0.0:%d/ws/status
  Video WS:        ws://0.0.0.0:%d/ws/video

  🎥 VIDEO

  Frame size:      %dx%d @ ~%dfps
  Camera relay:    %s

  🔒 SECURITY

  Rate Limiting:   %s (%.0f req/s, burst: %d)
  API Key:         %s
  Max Connections: %d

  [Ctrl+C to stop]

`,
		config.APIPort, config.APIPort, config.APIPort,
		config.APIPort, config.APIPort, config.APIPort,
		config.FrameWidth, config.FrameHeight, int(time.Second/config.FrameInterval),
		cameraStatus(config),
		enabledStr(config.RateLimitEnabled), config.RateLimitRPS, config.RateLimitBurst,
		apiKeyStatus(config.APIKey), config.MaxConnections,
	)
}

func cameraStatus(config *Config) string {
	if config.CameraEnabled {
		return "✅ " + config.CameraURL
	}
	return "❌ Disabled (synthesized feed)"
}

func enabledStr(enabled bool) string {
	if enabled {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}

func apiKeyStatus(key string) string {
	if key != "" {
		return "✅ Configured"
	}
	return "⚠️ Not set (open access)"
}
