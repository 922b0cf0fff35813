package counsel

import "errors"

var (
	// ErrBookNotFound is returned when a book_id has no registry entry.
	ErrBookNotFound = errors.New("counsel: book not found")

	// ErrBookExists is returned when ingesting a book_id that already has
	// an up-to-date structure on disk (same content hash).
	ErrBookExists = errors.New("counsel: book already ingested at this version")

	// ErrInvalidDomain is returned for a domain outside the closed enumeration.
	ErrInvalidDomain = errors.New("counsel: invalid domain")

	// ErrInvalidMinister is returned for a minister id outside the closed enumeration.
	ErrInvalidMinister = errors.New("counsel: invalid minister")

	// ErrStructuringFailed is returned when phase-1 chapter structuring fails
	// schema or semantic validation.
	ErrStructuringFailed = errors.New("counsel: chapter structuring failed")

	// ErrExtractionFailed is returned when phase-2 doctrine extraction fails
	// schema or semantic validation.
	ErrExtractionFailed = errors.New("counsel: doctrine extraction failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("counsel: embedding generation failed")

	// ErrLLMUnavailable is returned when the LLM provider is unreachable.
	ErrLLMUnavailable = errors.New("counsel: LLM provider unavailable")

	// ErrLLMRequestFailed is returned when an LLM request fails after retries.
	ErrLLMRequestFailed = errors.New("counsel: LLM request failed")

	// ErrInsufficientKnowledge is returned when retrieval yields no grounded
	// doctrine for a minister to reason from.
	ErrInsufficientKnowledge = errors.New("counsel: insufficient doctrine to reason from")

	// ErrNoAccess is returned when a minister's binding does not cover the
	// requested domain or book.
	ErrNoAccess = errors.New("counsel: minister is not bound to this domain or book")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("counsel: invalid configuration")

	// ErrConstraintBlocked is returned when a war-mode goal is blocked by
	// the constraint gate before any council work begins.
	ErrConstraintBlocked = errors.New("counsel: goal blocked by constraint gate")

	// ErrLedgerAppendOnly is returned when code attempts to mutate or delete
	// a row from the append-only ledger tables.
	ErrLedgerAppendOnly = errors.New("counsel: ledger is append-only")

	// ErrOutcomeNotFound is returned when recording an outcome against an
	// unknown decision event id.
	ErrOutcomeNotFound = errors.New("counsel: decision event not found")
)
