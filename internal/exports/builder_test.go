package exports

import (
	"bytes"
	"testing"
	"time"

	commands "hydrofarm-cloud/internal/commands/domain"
	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

func TestBuildReadingsXLSX(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rooms := []telemetry.RoomReading{
		{RoomID: "main-room", RoomTemp: 23.5, Humidity: 65, PH: 6.1, EC: 1.8, WaterLevel: "Adequate", Timestamp: now},
	}
	units := []telemetry.UnitReading{
		{ReadingID: "read-1", DeviceID: "device-1", RoomID: "main-room", Moisture: 42.5, Timestamp: now},
	}

	data, err := BuildReadingsXLSX("main-room", rooms, units)
	if err != nil {
		t.Fatalf("BuildReadingsXLSX: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty workbook")
	}
	// XLSX containers are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("not a zip container: % x", data[:4])
	}
}

func TestBuildCommandsPDF(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmds := []commands.Command{
		{
			CommandID: "cmd-1", DeviceID: "device-1", Action: "set_pump",
			Priority: commands.PriorityHigh, Status: commands.StatusExecuted,
			CreatedAt: now, ExecutedAt: now.Add(30 * time.Second), ExpiresAt: now.Add(5 * time.Minute),
		},
	}

	data, err := BuildCommandsPDF("device-1", now.Add(-time.Hour), now.Add(time.Hour), cmds)
	if err != nil {
		t.Fatalf("BuildCommandsPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a PDF document")
	}
}
