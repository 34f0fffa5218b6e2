package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nmslite/drivetemp/internal/config"
	"github.com/nmslite/drivetemp/internal/element"
)

const (
	oidSysUpTime   = ".1.3.6.1.2.1.1.3.0"
	oidSnmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"
)

// Varbind suffixes under <enterprise>.1.
const (
	varSystemSerial = iota + 1
	varDriveSerial
	varStatus
	varSeverity
	varValue
	varUnits
	varTimestamp
	varWWN
)

type trapSender interface {
	SendTrap(trap gosnmp.SnmpTrap) (*gosnmp.SnmpPacket, error)
}

// TrapSink sends one SNMPv2c trap per record whose severity is not normal.
type TrapSink struct {
	cfg    config.AlertsConfig
	sender trapSender
	close  func() error
	start  time.Time
	logger *slog.Logger
}

// NewTrapSink opens a UDP socket to the configured trap receiver.
func NewTrapSink(cfg config.AlertsConfig, logger *slog.Logger) (*TrapSink, error) {
	g := &gosnmp.GoSNMP{
		Target:    cfg.Target,
		Port:      uint16(cfg.Port),
		Version:   gosnmp.Version2c,
		Community: cfg.Community,
		Timeout:   cfg.Timeout(),
		Retries:   cfg.Retries,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("SNMP connection failed: %w", err)
	}

	s := newTrapSink(cfg, g, logger)
	s.close = g.Conn.Close
	return s, nil
}

func newTrapSink(cfg config.AlertsConfig, sender trapSender, logger *slog.Logger) *TrapSink {
	return &TrapSink{
		cfg:    cfg,
		sender: sender,
		close:  func() error { return nil },
		start:  time.Now(),
		logger: logger,
	}
}

func (t *TrapSink) Name() string { return "snmptrap" }

func (t *TrapSink) Write(ctx context.Context, b Batch) error {
	if b.Result == nil {
		return nil
	}

	sent := 0
	for _, rec := range b.Result.Records {
		if t.cfg.IsNormal(rec.Severity) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		uptime := uint32(time.Since(t.start) / (10 * time.Millisecond))
		if _, err := t.sender.SendTrap(BuildTrap(rec, t.cfg.EnterpriseOID, uptime)); err != nil {
			return fmt.Errorf("failed to send trap for %s/%s: %w", rec.SystemSerial, rec.ComponentSerial, err)
		}
		sent++
	}

	if sent > 0 {
		t.logger.Info("alert traps sent",
			"run_id", b.RunID.String(),
			"target", t.cfg.Target,
			"count", sent,
		)
	}
	return nil
}

// Close releases the UDP socket.
func (t *TrapSink) Close() error {
	return t.close()
}

// BuildTrap lays out a drive alert: sysUpTime, snmpTrapOID set to
// <enterprise>.0.1, then the record fields under <enterprise>.1.
func BuildTrap(rec element.Record, enterpriseOID string, uptime uint32) gosnmp.SnmpTrap {
	base := "." + strings.Trim(enterpriseOID, ".")

	str := func(n int, v string) gosnmp.SnmpPDU {
		return gosnmp.SnmpPDU{
			Name:  fmt.Sprintf("%s.1.%d", base, n),
			Type:  gosnmp.OctetString,
			Value: v,
		}
	}

	vars := []gosnmp.SnmpPDU{
		{Name: oidSysUpTime, Type: gosnmp.TimeTicks, Value: uptime},
		{Name: oidSnmpTrapOID, Type: gosnmp.ObjectIdentifier, Value: base + ".0.1"},
		str(varSystemSerial, rec.SystemSerial),
		str(varDriveSerial, rec.ComponentSerial),
		str(varStatus, rec.Status),
		str(varSeverity, rec.Severity),
		str(varValue, rec.Value),
		str(varUnits, rec.Units),
		str(varTimestamp, rec.Timestamp),
	}
	if rec.WWN != "" {
		vars = append(vars, str(varWWN, rec.WWN))
	}

	return gosnmp.SnmpTrap{Variables: vars}
}
