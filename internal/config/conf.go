package config

/*------------------------------------------------------------------
 *
 * Purpose:	Legacy line-oriented configuration file format: one
 *		directive per line, first token is the command name,
 *		case-insensitive, '#' starts a comment.
 *
 * Description:	Lines are split on whitespace the same way the
 *		original command-file tokenizer does: blank lines and
 *		comment lines are skipped, and an unrecognized command
 *		is reported with its line number rather than aborting
 *		the whole file.
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// LoadConf reads the legacy command-file format, merging recognized
// directives over the defaults. Recognized commands:
//
//	NODE_IP       a.b.c.d
//	NETMASK       a.b.c.d
//	GATEWAY       a.b.c.d
//	ETHERNET_LINK name
//	ETHERNET_IP   a.b.c.d
//	ETHERNET_NETMASK a.b.c.d
//	TUN_NAME      name
//	ADEVICE       name
//	ARATE         samples-per-second
//	CW_MIN        n
//	CW_MAX        n
//	DIFS_MS       n
//	ACK_TIMEOUT_MS n
func LoadConf(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var warnings []string
	line := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		cmd := strings.ToUpper(fields[0])
		args := fields[1:]

		if len(args) == 0 {
			warnings = append(warnings, fmt.Sprintf("line %d: %s requires an argument", line, cmd))
			continue
		}

		switch cmd {
		case "NODE_IP":
			if ip, ok := parseIPv4(args[0]); ok {
				cfg.NodeIP = ip
			} else {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid NODE_IP %q", line, args[0]))
			}
		case "NETMASK":
			if ip, ok := parseIPv4(args[0]); ok {
				cfg.Netmask = ip
			} else {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid NETMASK %q", line, args[0]))
			}
		case "GATEWAY":
			if ip, ok := parseIPv4(args[0]); ok {
				cfg.Gateway = &ip
			} else {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid GATEWAY %q", line, args[0]))
			}
		case "ETHERNET_LINK":
			cfg.EthernetLink = args[0]
		case "ETHERNET_IP":
			if ip, ok := parseIPv4(args[0]); ok {
				cfg.EthernetIP = ip
			} else {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid ETHERNET_IP %q", line, args[0]))
			}
		case "ETHERNET_NETMASK":
			if ip, ok := parseIPv4(args[0]); ok {
				cfg.EthernetNetmask = ip
			} else {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid ETHERNET_NETMASK %q", line, args[0]))
			}
		case "TUN_NAME":
			cfg.TunName = args[0]
		case "ADEVICE":
			cfg.AudioDevice = args[0]
		case "ARATE":
			n, err := strconv.Atoi(args[0])
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid ARATE %q", line, args[0]))
				continue
			}
			cfg.SampleRate = n
		case "CW_MIN":
			cfg.CWMin = atoiOrKeep(cfg.CWMin, args[0], line, cmd, &warnings)
		case "CW_MAX":
			cfg.CWMax = atoiOrKeep(cfg.CWMax, args[0], line, cmd, &warnings)
		case "DIFS_MS":
			cfg.DIFSMS = atoiOrKeep(cfg.DIFSMS, args[0], line, cmd, &warnings)
		case "ACK_TIMEOUT_MS":
			cfg.AckTimeoutMS = atoiOrKeep(cfg.AckTimeoutMS, args[0], line, cmd, &warnings)
		default:
			warnings = append(warnings, fmt.Sprintf("line %d: unrecognized command %q", line, fields[0]))
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: scan %s: %w", path, err)
	}

	for _, w := range warnings {
		log.Default().WithPrefix("config").Warn(w)
	}
	return cfg, nil
}

func atoiOrKeep(current int, s string, line int, cmd string, warnings *[]string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("line %d: invalid %s %q", line, cmd, s))
		return current
	}
	return n
}

func parseIPv4(s string) ([4]byte, bool) {
	ip := net.ParseIP(s)
	if ip == nil {
		return [4]byte{}, false
	}
	v4 := ip.To4()
	if v4 == nil {
		return [4]byte{}, false
	}
	var out [4]byte
	copy(out[:], v4)
	return out, true
}
