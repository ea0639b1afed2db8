package settlement

import "errors"

var (
	// ErrCampaignNotFound means neither the regional nor the home store
	// holds the campaign. The item is skipped and counted as an error,
	// never fatal to the run.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrAccountMissing means the creator has no ledger account in the
	// region. The submission still settles; the reconciliation auditor
	// surfaces the unpaid gap.
	ErrAccountMissing = errors.New("creator account missing")

	// ErrLedgerWriteFailed wraps a failed balance/transaction write. The
	// settlement marker is rolled back so the next run retries the item.
	ErrLedgerWriteFailed = errors.New("ledger write failed")

	// ErrDuplicateRun is returned by the execution guard when another run
	// started inside the duplicate window.
	ErrDuplicateRun = errors.New("duplicate run inside the guard window")
)
