package enum

// AuditAction names the ledger transition recorded by an audit entry
type AuditAction string

const (
	AuditActionPeriodOpen    AuditAction = "period.open"
	AuditActionPeriodClose   AuditAction = "period.close"
	AuditActionPayoutRecord  AuditAction = "period.payout"
	AuditActionReceiptCreate AuditAction = "receipt.create"
	AuditActionReceiptItems  AuditAction = "receipt.add_items"
	AuditActionReceiptSettle AuditAction = "receipt.settle"
	AuditActionReceiptVoid   AuditAction = "receipt.void"
	AuditActionReceiptSplit  AuditAction = "receipt.split"
	AuditActionReceiptMerge  AuditAction = "receipt.merge"
	AuditActionPaymentApply  AuditAction = "payment.apply"
	AuditActionPaymentCancel AuditAction = "payment.cancel"
	AuditActionOverrideGrant AuditAction = "override.grant"
	AuditActionOverrideDeny  AuditAction = "override.deny"
	AuditActionZReportFreeze AuditAction = "report.z_freeze"
)
