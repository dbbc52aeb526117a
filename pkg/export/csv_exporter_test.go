package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"student_number", "student_name", "status"},
		Rows: []map[string]string{
			{"status": "PRESENT", "student_number": "WC-0001", "student_name": "Ana"},
			{"student_number": "WC-0002", "student_name": "Bo"},
		},
	}

	payload, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.Equal(t, "student_number,student_name,status\nWC-0001,Ana,PRESENT\nWC-0002,Bo,\n", string(payload))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
