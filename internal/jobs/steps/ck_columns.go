package steps

// ckMetricColumns lists every CK (Chidamber & Kemerer) static metric
// column tracked on a commit's per-file/class metrics row (excluding
// its identity columns: repository_id, commit_hash, file, class).
// GetParentCKMetrics joins each one in as "parent_<col>" and
// CalculateDeltaMetrics reduces each pair to "d_<col>" = current -
// parent.
var ckMetricColumns = []string{
	"cbo", "cboModified", "fanin", "fanout", "wmc", "dit", "noc", "rfc",
	"lcom", "lcom_norm", "tcc", "lcc",
	"totalMethodsQty", "staticMethodsQty", "publicMethodsQty", "privateMethodsQty",
	"protectedMethodsQty", "defaultMethodsQty", "visibleMethodsQty", "abstractMethodsQty",
	"finalMethodsQty", "synchronizedMethodsQty",
	"totalFieldsQty", "staticFieldsQty", "publicFieldsQty", "privateFieldsQty",
	"protectedFieldsQty", "defaultFieldsQty", "finalFieldsQty", "synchronizedFieldsQty",
	"nosi", "loc", "returnQty", "loopQty", "comparisonsQty", "tryCatchQty",
	"parenthesizedExpsQty", "stringLiteralsQty", "numbersQty", "assignmentsQty",
	"mathOperationsQty", "variablesQty", "maxNestedBlocksQty", "anonymousClassesQty",
	"innerClassesQty", "lambdasQty", "uniqueWordsQty", "modifiers", "logStatementsQty",
}
