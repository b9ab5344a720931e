package exports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	commands "hydrofarm-cloud/internal/commands/domain"
	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

// BuildReadingsXLSX renders room and unit history into a workbook.
func BuildReadingsXLSX(roomID string, rooms []telemetry.RoomReading, units []telemetry.UnitReading) ([]byte, error) {
	f := excelize.NewFile()
	roomSheet := "room"
	unitSheet := "units"
	f.SetSheetName("Sheet1", roomSheet)
	f.NewSheet(unitSheet)

	_ = f.SetCellValue(roomSheet, "A1", "Room")
	_ = f.SetCellValue(roomSheet, "B1", roomID)
	_ = f.SetCellValue(roomSheet, "A3", "Timestamp")
	_ = f.SetCellValue(roomSheet, "B3", "Temp (C)")
	_ = f.SetCellValue(roomSheet, "C3", "Humidity (%)")
	_ = f.SetCellValue(roomSheet, "D3", "pH")
	_ = f.SetCellValue(roomSheet, "E3", "EC")
	_ = f.SetCellValue(roomSheet, "F3", "Water Level")
	for i, reading := range rooms {
		row := i + 4
		_ = f.SetCellValue(roomSheet, fmt.Sprintf("A%d", row), reading.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(roomSheet, fmt.Sprintf("B%d", row), reading.RoomTemp)
		_ = f.SetCellValue(roomSheet, fmt.Sprintf("C%d", row), reading.Humidity)
		_ = f.SetCellValue(roomSheet, fmt.Sprintf("D%d", row), reading.PH)
		_ = f.SetCellValue(roomSheet, fmt.Sprintf("E%d", row), reading.EC)
		_ = f.SetCellValue(roomSheet, fmt.Sprintf("F%d", row), reading.WaterLevel)
	}

	_ = f.SetCellValue(unitSheet, "A1", "Timestamp")
	_ = f.SetCellValue(unitSheet, "B1", "Device")
	_ = f.SetCellValue(unitSheet, "C1", "Moisture (%)")
	for i, reading := range units {
		row := i + 2
		_ = f.SetCellValue(unitSheet, fmt.Sprintf("A%d", row), reading.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(unitSheet, fmt.Sprintf("B%d", row), reading.DeviceID)
		_ = f.SetCellValue(unitSheet, fmt.Sprintf("C%d", row), reading.Moisture)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCommandsPDF renders a command history report for a device.
func BuildCommandsPDF(deviceID string, from, to time.Time, cmds []commands.Command) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Command History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", deviceID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Commands: %d", len(cmds)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(42, 6, "Created", "1", 0, "C", false, 0, "")
	pdf.CellFormat(48, 6, "Action", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Priority", "1", 0, "C", false, 0, "")
	pdf.CellFormat(24, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(42, 6, "Resolved", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, cmd := range cmds {
		resolved := ""
		if !cmd.ExecutedAt.IsZero() {
			resolved = cmd.ExecutedAt.Format("2006-01-02 15:04:05")
		}
		pdf.CellFormat(42, 6, cmd.CreatedAt.Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(48, 6, cmd.Action, "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, cmd.Priority, "1", 0, "C", false, 0, "")
		pdf.CellFormat(24, 6, cmd.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(42, 6, resolved, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
