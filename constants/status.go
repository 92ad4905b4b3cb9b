package constants

// RecordStatus is the canonical status for stored extraction records.
type RecordStatus string

// Stable values (store these exact strings in the records table).
const (
	RecordStatusExtracted RecordStatus = "EXTRACTED" // fields or items found
	RecordStatusEmpty     RecordStatus = "EMPTY"     // parse completed with no data
	RecordStatusFailed    RecordStatus = "FAILED"    // terminal acquisition failure
)

// AcquisitionMethod records how the text of a document was obtained.
type AcquisitionMethod string

const (
	MethodTextLayer AcquisitionMethod = "text-layer"
	MethodOCR       AcquisitionMethod = "ocr"
	MethodFlattened AcquisitionMethod = "flattened"
	MethodRaw       AcquisitionMethod = "raw"
)
