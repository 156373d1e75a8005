package config

import (
	"fmt"
	"os"
)

func Template() string {
	return defaultTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o600)
}

const defaultTemplate = `# thriftsniff configuration. Command line flags override these values.

[log]
level = "info"

[capture]
interface = ""
port = 9090
# pcap_file = "capture.pcap"
snaplen = 65535
promiscuous = true
# bpf replaces the "tcp port <port>" filter when set.
bpf = ""
timeout = "500ms"

[decoder]
max_depth = 64
# Reject top-level field lists that end without a STOP byte.
require_stop = false
# zigzag or varint (Apache Thrift writes a plain varint).
compact_seq_id = "zigzag"
max_payload = 16777216

[pipeline]
workers = 4
queue = 256

[admin]
enabled = false
addr = "127.0.0.1:9464"
# Browser origins allowed to read /stats; empty means http://localhost:3000.
# cors_origins = ["http://localhost:3000"]
# Bearer token required on /stats when set.
token = ""

[schema]
builtin = true
# file = "service.toml"

[sinks.report]
enabled = true
hexdump = true

[sinks.log]
enabled = false

[sinks.nats]
enabled = false
url = "nats://127.0.0.1:4222"
subject = "thriftsniff"

[sinks.redis]
enabled = false
addr = "127.0.0.1:6379"
db = 0
key_prefix = "thriftsniff"
recent_limit = 100
`
