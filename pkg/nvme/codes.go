package nvme

import "strconv"

// ErrorCode is an nvme_err_t value. Values this package does not know are
// preserved and print as ErrorCode(n).
type ErrorCode uint32

const (
	CodeOK ErrorCode = iota
	CodeController
	CodeNoMem
	CodeNoDmaMem
	CodeLibdevinfo
	CodeInternal
	CodeBadPtr
	CodeBadFlag
	CodeBadDevi
	CodeBadDeviProp
	CodeIllegalInstance
	CodeBadController
	CodePrivs
	CodeOpenDev
	CodeBadRestore
	CodeNsRange
	CodeNsUnuse
	CodeLogCsiRange
	CodeLogLidRange
	CodeLogLspRange
	CodeLogLsiRange
	CodeLogRaeRange
	CodeLogSizeRange
	CodeLogOffsetRange
	CodeLogCsiUnsup
	CodeLogLspUnsup
	CodeLogLsiUnsup
	CodeLogRaeUnsup
	CodeLogOffsetUnsup
	CodeLogLspUnuse
	CodeLogLsiUnuse
	CodeLogRaeUnuse
	CodeLogScopeMismatch
	CodeLogReqMissingFields
	CodeLogNameUnknown
	CodeLogUnsupByDev
	CodeIdentifyUnknown
	CodeIdentifyUnsupByDev
	CodeIdentifyCtrlidRange
	CodeIdentifyOutputRange
	CodeIdentifyCtrlidUnsup
	CodeIdentifyCtrlidUnuse
	CodeIdentifyReqMissingFields
	CodeVucUnsupByDev
	CodeVucTimeoutRange
	CodeVucOpcodeRange
	CodeVucImpactRange
	CodeVucNdtRange
	CodeVucCannotRw
	CodeVucNoResults
	CodeVucUnknown
	CodeVucReqMissingFields
	CodeVuFuncUnsupByDev
	CodeWdcE6OffsetRange
	CodeFwUnsupByDev
	CodeKernFwImpos
	CodeFwLoadLenRange
	CodeFwLoadOffsetRange
	CodeFwCommitSlotRange
	CodeFwCommitActionRange
	CodeFwCommitReqMissingFields
	CodeFwSlotRo
	CodeFormatUnsupByDev
	CodeCryptoSeUnsupByDev
	CodeNsFormatUnsupByDev
	CodeKernFormatUnsup
	CodeFormatLbafRange
	CodeFormatSesRange
	CodeFormatParamUnsup
	CodeFormatReqMissingFields
	CodeWdcE6ReqMissingFields
	CodeFeatNameUnknown
	CodeFeatUnsupByDev
	CodeFeatFidRange
	CodeFeatSelRange
	CodeFeatCdw11Range
	CodeFeatDataRange
	CodeFeatSelUnsup
	CodeFeatCdw11Unuse
	CodeFeatDataUnuse
	CodeFeatNoResults
	CodeGetFeatReqMissingFields
	CodeNeedCtrlWrlock
	CodeNeedNsWrlock
	CodeCtrlLocked
	CodeNsLocked
	CodeLockProg
	CodeLockOrder
	CodeLockWaitIntr
	CodeLockWouldBlock
	CodeDetachKern
	CodeAttachKern
	CodeAttachUnsupKern
	CodeNsBlkdevAttach
	CodeNoKernMem
	CodeCtrlDead
	CodeCtrlGone
)

var errorCodeNames = [...]string{
	"NVME_ERR_OK",
	"NVME_ERR_CONTROLLER",
	"NVME_ERR_NO_MEM",
	"NVME_ERR_NO_DMA_MEM",
	"NVME_ERR_LIBDEVINFO",
	"NVME_ERR_INTERNAL",
	"NVME_ERR_BAD_PTR",
	"NVME_ERR_BAD_FLAG",
	"NVME_ERR_BAD_DEVI",
	"NVME_ERR_BAD_DEVI_PROP",
	"NVME_ERR_ILLEGAL_INSTANCE",
	"NVME_ERR_BAD_CONTROLLER",
	"NVME_ERR_PRIVS",
	"NVME_ERR_OPEN_DEV",
	"NVME_ERR_BAD_RESTORE",
	"NVME_ERR_NS_RANGE",
	"NVME_ERR_NS_UNUSE",
	"NVME_ERR_LOG_CSI_RANGE",
	"NVME_ERR_LOG_LID_RANGE",
	"NVME_ERR_LOG_LSP_RANGE",
	"NVME_ERR_LOG_LSI_RANGE",
	"NVME_ERR_LOG_RAE_RANGE",
	"NVME_ERR_LOG_SIZE_RANGE",
	"NVME_ERR_LOG_OFFSET_RANGE",
	"NVME_ERR_LOG_CSI_UNSUP",
	"NVME_ERR_LOG_LSP_UNSUP",
	"NVME_ERR_LOG_LSI_UNSUP",
	"NVME_ERR_LOG_RAE_UNSUP",
	"NVME_ERR_LOG_OFFSET_UNSUP",
	"NVME_ERR_LOG_LSP_UNUSE",
	"NVME_ERR_LOG_LSI_UNUSE",
	"NVME_ERR_LOG_RAE_UNUSE",
	"NVME_ERR_LOG_SCOPE_MISMATCH",
	"NVME_ERR_LOG_REQ_MISSING_FIELDS",
	"NVME_ERR_LOG_NAME_UNKNOWN",
	"NVME_ERR_LOG_UNSUP_BY_DEV",
	"NVME_ERR_IDENTIFY_UNKNOWN",
	"NVME_ERR_IDENTIFY_UNSUP_BY_DEV",
	"NVME_ERR_IDENTIFY_CTRLID_RANGE",
	"NVME_ERR_IDENTIFY_OUTPUT_RANGE",
	"NVME_ERR_IDENTIFY_CTRLID_UNSUP",
	"NVME_ERR_IDENTIFY_CTRLID_UNUSE",
	"NVME_ERR_IDENTIFY_REQ_MISSING_FIELDS",
	"NVME_ERR_VUC_UNSUP_BY_DEV",
	"NVME_ERR_VUC_TIMEOUT_RANGE",
	"NVME_ERR_VUC_OPCODE_RANGE",
	"NVME_ERR_VUC_IMPACT_RANGE",
	"NVME_ERR_VUC_NDT_RANGE",
	"NVME_ERR_VUC_CANNOT_RW",
	"NVME_ERR_VUC_NO_RESULTS",
	"NVME_ERR_VUC_UNKNOWN",
	"NVME_ERR_VUC_REQ_MISSING_FIELDS",
	"NVME_ERR_VU_FUNC_UNSUP_BY_DEV",
	"NVME_ERR_WDC_E6_OFFSET_RANGE",
	"NVME_ERR_FW_UNSUP_BY_DEV",
	"NVME_ERR_KERN_FW_IMPOS",
	"NVME_ERR_FW_LOAD_LEN_RANGE",
	"NVME_ERR_FW_LOAD_OFFSET_RANGE",
	"NVME_ERR_FW_COMMIT_SLOT_RANGE",
	"NVME_ERR_FW_COMMIT_ACTION_RANGE",
	"NVME_ERR_FW_COMMIT_REQ_MISSING_FIELDS",
	"NVME_ERR_FW_SLOT_RO",
	"NVME_ERR_FORMAT_UNSUP_BY_DEV",
	"NVME_ERR_CRYPTO_SE_UNSUP_BY_DEV",
	"NVME_ERR_NS_FORMAT_UNSUP_BY_DEV",
	"NVME_ERR_KERN_FORMAT_UNSUP",
	"NVME_ERR_FORMAT_LBAF_RANGE",
	"NVME_ERR_FORMAT_SES_RANGE",
	"NVME_ERR_FORMAT_PARAM_UNSUP",
	"NVME_ERR_FORMAT_REQ_MISSING_FIELDS",
	"NVME_ERR_WDC_E6_REQ_MISSING_FIELDS",
	"NVME_ERR_FEAT_NAME_UNKNOWN",
	"NVME_ERR_FEAT_UNSUP_BY_DEV",
	"NVME_ERR_FEAT_FID_RANGE",
	"NVME_ERR_FEAT_SEL_RANGE",
	"NVME_ERR_FEAT_CDW11_RANGE",
	"NVME_ERR_FEAT_DATA_RANGE",
	"NVME_ERR_FEAT_SEL_UNSUP",
	"NVME_ERR_FEAT_CDW11_UNUSE",
	"NVME_ERR_FEAT_DATA_UNUSE",
	"NVME_ERR_FEAT_NO_RESULTS",
	"NVME_ERR_GET_FEAT_REQ_MISSING_FIELDS",
	"NVME_ERR_NEED_CTRL_WRLOCK",
	"NVME_ERR_NEED_NS_WRLOCK",
	"NVME_ERR_CTRL_LOCKED",
	"NVME_ERR_NS_LOCKED",
	"NVME_ERR_LOCK_PROG",
	"NVME_ERR_LOCK_ORDER",
	"NVME_ERR_LOCK_WAIT_INTR",
	"NVME_ERR_LOCK_WOULD_BLOCK",
	"NVME_ERR_DETACH_KERN",
	"NVME_ERR_ATTACH_KERN",
	"NVME_ERR_ATTACH_UNSUP_KERN",
	"NVME_ERR_NS_BLKDEV_ATTACH",
	"NVME_ERR_NO_KERN_MEM",
	"NVME_ERR_CTRL_DEAD",
	"NVME_ERR_CTRL_GONE",
}

// Known reports whether the code is one this package has a name for.
func (c ErrorCode) Known() bool { return int(c) < len(errorCodeNames) }

// String returns the libnvme constant name of the code.
func (c ErrorCode) String() string {
	if c.Known() {
		return errorCodeNames[c]
	}
	return "ErrorCode(" + strconv.FormatUint(uint64(c), 10) + ")"
}

// InfoErrorCode is an nvme_info_err_t value.
type InfoErrorCode uint32

const (
	InfoCodeOK InfoErrorCode = iota
	InfoCodeTransport
	InfoCodeVersion
	InfoCodeMissingCap
	InfoCodeBadLbaFmt
	InfoCodePersistNvl
	InfoCodeBadFmt
	InfoCodeBadFmtData
	InfoCodeNsInactive
	InfoCodeNsNoBlkdev
)

var infoErrorCodeNames = [...]string{
	"NVME_INFO_ERR_OK",
	"NVME_INFO_ERR_TRANSPORT",
	"NVME_INFO_ERR_VERSION",
	"NVME_INFO_ERR_MISSING_CAP",
	"NVME_INFO_ERR_BAD_LBA_FMT",
	"NVME_INFO_ERR_PERSIST_NVL",
	"NVME_INFO_ERR_BAD_FMT",
	"NVME_INFO_ERR_BAD_FMT_DATA",
	"NVME_INFO_ERR_NS_INACTIVE",
	"NVME_INFO_ERR_NS_NO_BLKDEV",
}

// Known reports whether the code is one this package has a name for.
func (c InfoErrorCode) Known() bool { return int(c) < len(infoErrorCodeNames) }

// String returns the libnvme constant name of the code.
func (c InfoErrorCode) String() string {
	if c.Known() {
		return infoErrorCodeNames[c]
	}
	return "InfoErrorCode(" + strconv.FormatUint(uint64(c), 10) + ")"
}
