package opcode

import "fmt"

// Op is a logical script operation. The numeric value of an Op is stable
// across targets and is never written to an image; each target assigns its
// own wire value through a Table.
type Op uint8

const (
	// ========================================================================
	// Returns
	// ========================================================================

	OpEnd    Op = 0x00
	OpReturn Op = 0x01

	// ========================================================================
	// Constants and objects
	// ========================================================================

	OpGetUndefined        Op = 0x02
	OpGetZero             Op = 0x03
	OpGetByte             Op = 0x04
	OpGetNegByte          Op = 0x05
	OpGetUnsignedShort    Op = 0x06
	OpGetNegUnsignedShort Op = 0x07
	OpGetInteger          Op = 0x08
	OpGetFloat            Op = 0x09
	OpGetString           Op = 0x0a
	OpGetIString          Op = 0x0b
	OpGetVector           Op = 0x0c
	OpGetLevelObject      Op = 0x0d
	OpGetAnimObject       Op = 0x0e
	OpGetSelf             Op = 0x0f
	OpGetLevel            Op = 0x10
	OpGetGame             Op = 0x11
	OpGetAnim             Op = 0x12
	OpGetAnimation        Op = 0x13
	OpGetGameRef          Op = 0x14
	OpGetFunction         Op = 0x15

	// ========================================================================
	// Local and field variables
	// ========================================================================

	OpCreateLocalVariable            Op = 0x16
	OpSafeCreateLocalVariables       Op = 0x17
	OpRemoveLocalVariables           Op = 0x18
	OpEvalLocalVariableCached        Op = 0x19
	OpEvalArray                      Op = 0x1a
	OpEvalLocalArrayRefCached        Op = 0x1b
	OpEvalArrayRef                   Op = 0x1c
	OpClearArray                     Op = 0x1d
	OpGetEmptyArray                  Op = 0x1e
	OpGetSelfObject                  Op = 0x1f
	OpEvalFieldVariable              Op = 0x20
	OpEvalFieldVariableRef           Op = 0x21
	OpClearFieldVariable             Op = 0x22
	OpSafeSetVariableFieldCached     Op = 0x23
	OpSetWaittillVariableFieldCached Op = 0x24
	OpClearParams                    Op = 0x25
	OpCheckClearParams               Op = 0x26
	OpEvalLocalVariableRefCached     Op = 0x27

	// ========================================================================
	// Assignment and calls
	// ========================================================================

	OpSetVariableField              Op = 0x28
	OpCallBuiltin                   Op = 0x29
	OpCallBuiltinMethod             Op = 0x2a
	OpWait                          Op = 0x2b
	OpWaitTillFrameEnd              Op = 0x2c
	OpPreScriptCall                 Op = 0x2d
	OpScriptFunctionCall            Op = 0x2e
	OpScriptFunctionCallPointer     Op = 0x2f
	OpScriptMethodCall              Op = 0x30
	OpScriptMethodCallPointer       Op = 0x31
	OpScriptThreadCall              Op = 0x32
	OpScriptThreadCallPointer       Op = 0x33
	OpScriptMethodThreadCall        Op = 0x34
	OpScriptMethodThreadCallPointer Op = 0x35

	// ========================================================================
	// Casts and branches
	// ========================================================================

	OpDecTop          Op = 0x36
	OpCastFieldObject Op = 0x37
	OpCastBool        Op = 0x38
	OpBoolNot         Op = 0x39
	OpBoolComplement  Op = 0x3a
	OpJumpOnFalse     Op = 0x3b
	OpJumpOnTrue      Op = 0x3c
	OpJumpOnFalseExpr Op = 0x3d
	OpJumpOnTrueExpr  Op = 0x3e
	OpJump            Op = 0x3f
	OpJumpBack        Op = 0x40

	// ========================================================================
	// Operators
	// ========================================================================

	OpInc                  Op = 0x41
	OpDec                  Op = 0x42
	OpBitOr                Op = 0x43
	OpBitXor               Op = 0x44
	OpBitAnd               Op = 0x45
	OpEqual                Op = 0x46
	OpNotEqual             Op = 0x47
	OpLessThan             Op = 0x48
	OpGreaterThan          Op = 0x49
	OpLessThanOrEqualTo    Op = 0x4a
	OpGreaterThanOrEqualTo Op = 0x4b
	OpShiftLeft            Op = 0x4c
	OpShiftRight           Op = 0x4d
	OpPlus                 Op = 0x4e
	OpMinus                Op = 0x4f
	OpMultiply             Op = 0x50
	OpDivide               Op = 0x51
	OpModulus              Op = 0x52
	OpSizeOf               Op = 0x53

	// ========================================================================
	// Notifications and switches
	// ========================================================================

	OpWaitTillMatch Op = 0x54
	OpWaitTill      Op = 0x55
	OpNotify        Op = 0x56
	OpEndOn         Op = 0x57
	OpVoidCodePos   Op = 0x58
	OpSwitch        Op = 0x59
	OpEndSwitch     Op = 0x5a

	// ========================================================================
	// Vectors and builtins
	// ========================================================================

	OpVector            Op = 0x5b
	OpGetHash           Op = 0x5c
	OpRealWait          Op = 0x5d
	OpVectorConstant    Op = 0x5e
	OpIsDefined         Op = 0x5f
	OpVectorScale       Op = 0x60
	OpAnglesToUp        Op = 0x61
	OpAnglesToRight     Op = 0x62
	OpAnglesToForward   Op = 0x63
	OpAngleClamp180     Op = 0x64
	OpVectorToAngles    Op = 0x65
	OpAbs               Op = 0x66
	OpGetTime           Op = 0x67
	OpGetDvar           Op = 0x68
	OpGetDvarInt        Op = 0x69
	OpGetDvarFloat      Op = 0x6a
	OpGetDvarVector     Op = 0x6b
	OpGetDvarColorRed   Op = 0x6c
	OpGetDvarColorGreen Op = 0x6d
	OpGetDvarColorBlue  Op = 0x6e
	OpGetDvarColorAlpha Op = 0x6f
	OpFirstArrayKey     Op = 0x70
	OpNextArrayKey      Op = 0x71
	OpProfileStart      Op = 0x72
	OpProfileStop       Op = 0x73
	OpSafeDecTop        Op = 0x74

	// ========================================================================
	// Debugging
	// ========================================================================

	OpNop                  Op = 0x75
	OpAbort                Op = 0x76
	OpObj                  Op = 0x77
	OpThreadObject         Op = 0x78
	OpEvalLocalVariable    Op = 0x79
	OpEvalLocalVariableRef Op = 0x7a
	OpDevblockBegin        Op = 0x7b
	OpDevblockEnd          Op = 0x7c
	OpBreakpoint           Op = 0x7d
	OpAutoBreakpoint       Op = 0x7e
	OpErrorBreakpoint      Op = 0x7f
	OpWatchBreakpoint      Op = 0x80
	OpNotifyBreakpoint     Op = 0x81

	// ========================================================================
	// Later additions
	// ========================================================================

	OpGetObjectType             Op = 0x82
	OpWaitRealTime              Op = 0x83
	OpGetWorldObject            Op = 0x84
	OpGetClassesObject          Op = 0x85
	OpClassFunctionCall         Op = 0x86
	OpBitNot                    Op = 0x87
	OpGetWorld                  Op = 0x88
	OpEvalLevelFieldVariable    Op = 0x89
	OpEvalLevelFieldVariableRef Op = 0x8a
	OpEvalSelfFieldVariable     Op = 0x8b
	OpEvalSelfFieldVariableRef  Op = 0x8c
	OpSuperEqual                Op = 0x8d
	OpSuperNotEqual             Op = 0x8e

	// ========================================================================
	// Globals
	// ========================================================================

	OpGetGlobalObject    Op = 0x8f
	OpGetGlobalObjectRef Op = 0x90

	// OpInvalid marks an unassigned slot in a target's opcode map.
	OpInvalid Op = 0xFF
)

// OpType classifies what an operation does to the evaluation stack.
type OpType uint8

const (
	TypeNone OpType = iota
	TypeStackPush
	TypeStackPop
	TypeEndon
	TypeNotification
	TypeWaittill
	TypeCall
	TypeJumpExpression
	TypeJumpCondition
	TypeJump
	TypeSetVariable
	TypeVariable
	TypeVariableReference
	TypeArray
	TypeArrayReference
	TypeClearVariable
	TypeObject
	TypeObjectReference
	TypeCast
	TypeSingleToken
	TypeSingleOperand
	TypeDoubleOperand
	TypeComparison
	TypeSizeOf
	TypeSwitch
	TypeSwitchCases
	TypeReturn
)

// OperandType describes the operand bytes that follow an operation's tag.
type OperandType uint8

const (
	OperandNone OperandType = iota
	OperandInt8
	OperandUInt8
	OperandInt16
	OperandUInt16
	OperandInt32
	OperandUInt32
	OperandFloat
	OperandVector
	OperandVectorFlags
	OperandString
	OperandCall
	OperandFunctionPointer
	OperandHash
	OperandVariableList
	OperandVariableName
	OperandVariableIndex
	OperandSwitchEnd
)

// OpInfo contains metadata about a logical operation.
type OpInfo struct {
	Name    string      // Name used in target definitions and listings
	Type    OpType      // Stack behaviour
	Operand OperandType // Operand layout
}

// opInfoTable maps operations to their metadata.
var opInfoTable = map[Op]OpInfo{
	OpEnd:    {"End", TypeReturn, OperandNone},
	OpReturn: {"Return", TypeReturn, OperandNone},

	OpGetUndefined:        {"GetUndefined", TypeStackPush, OperandNone},
	OpGetZero:             {"GetZero", TypeStackPush, OperandNone},
	OpGetByte:             {"GetByte", TypeStackPush, OperandUInt8},
	OpGetNegByte:          {"GetNegByte", TypeStackPush, OperandUInt8},
	OpGetUnsignedShort:    {"GetUnsignedShort", TypeStackPush, OperandUInt16},
	OpGetNegUnsignedShort: {"GetNegUnsignedShort", TypeStackPush, OperandUInt16},
	OpGetInteger:          {"GetInteger", TypeStackPush, OperandInt32},
	OpGetFloat:            {"GetFloat", TypeStackPush, OperandFloat},
	OpGetString:           {"GetString", TypeStackPush, OperandString},
	OpGetIString:          {"GetIString", TypeStackPush, OperandString},
	OpGetVector:           {"GetVector", TypeStackPush, OperandVector},
	OpGetLevelObject:      {"GetLevelObject", TypeObject, OperandNone},
	OpGetAnimObject:       {"GetAnimObject", TypeObject, OperandNone},
	OpGetSelf:             {"GetSelf", TypeStackPush, OperandNone},
	OpGetLevel:            {"GetLevel", TypeStackPush, OperandNone},
	OpGetGame:             {"GetGame", TypeStackPush, OperandNone},
	OpGetAnim:             {"GetAnim", TypeStackPush, OperandNone},
	OpGetAnimation:        {"GetAnimation", TypeStackPush, OperandString},
	OpGetGameRef:          {"GetGameRef", TypeObjectReference, OperandNone},
	OpGetFunction:         {"GetFunction", TypeStackPush, OperandFunctionPointer},

	OpCreateLocalVariable:            {"CreateLocalVariable", TypeNone, OperandNone},
	OpSafeCreateLocalVariables:       {"SafeCreateLocalVariables", TypeNone, OperandVariableList},
	OpRemoveLocalVariables:           {"RemoveLocalVariables", TypeNone, OperandNone},
	OpEvalLocalVariableCached:        {"EvalLocalVariableCached", TypeVariable, OperandUInt8},
	OpEvalArray:                      {"EvalArray", TypeArray, OperandNone},
	OpEvalLocalArrayRefCached:        {"EvalLocalArrayRefCached", TypeNone, OperandNone},
	OpEvalArrayRef:                   {"EvalArrayRef", TypeArrayReference, OperandNone},
	OpClearArray:                     {"ClearArray", TypeClearVariable, OperandNone},
	OpGetEmptyArray:                  {"GetEmptyArray", TypeStackPush, OperandNone},
	OpGetSelfObject:                  {"GetSelfObject", TypeObject, OperandNone},
	OpEvalFieldVariable:              {"EvalFieldVariable", TypeVariable, OperandVariableName},
	OpEvalFieldVariableRef:           {"EvalFieldVariableRef", TypeVariableReference, OperandVariableName},
	OpClearFieldVariable:             {"ClearFieldVariable", TypeClearVariable, OperandVariableName},
	OpSafeSetVariableFieldCached:     {"SafeSetVariableFieldCached", TypeNone, OperandNone},
	OpSetWaittillVariableFieldCached: {"SetWaittillVariableFieldCached", TypeNone, OperandUInt8},
	OpClearParams:                    {"ClearParams", TypeNone, OperandNone},
	OpCheckClearParams:               {"CheckClearParams", TypeNone, OperandNone},
	OpEvalLocalVariableRefCached:     {"EvalLocalVariableRefCached", TypeVariableReference, OperandUInt8},

	OpSetVariableField:              {"SetVariableField", TypeSetVariable, OperandNone},
	OpCallBuiltin:                   {"CallBuiltin", TypeCall, OperandCall},
	OpCallBuiltinMethod:             {"CallBuiltinMethod", TypeCall, OperandCall},
	OpWait:                          {"Wait", TypeCall, OperandNone},
	OpWaitTillFrameEnd:              {"WaitTillFrameEnd", TypeNotification, OperandNone},
	OpPreScriptCall:                 {"PreScriptCall", TypeNone, OperandNone},
	OpScriptFunctionCall:            {"ScriptFunctionCall", TypeCall, OperandCall},
	OpScriptFunctionCallPointer:     {"ScriptFunctionCallPointer", TypeCall, OperandUInt8},
	OpScriptMethodCall:              {"ScriptMethodCall", TypeCall, OperandCall},
	OpScriptMethodCallPointer:       {"ScriptMethodCallPointer", TypeCall, OperandUInt8},
	OpScriptThreadCall:              {"ScriptThreadCall", TypeCall, OperandCall},
	OpScriptThreadCallPointer:       {"ScriptThreadCallPointer", TypeCall, OperandUInt8},
	OpScriptMethodThreadCall:        {"ScriptMethodThreadCall", TypeCall, OperandCall},
	OpScriptMethodThreadCallPointer: {"ScriptMethodThreadCallPointer", TypeCall, OperandUInt8},

	OpDecTop:          {"DecTop", TypeStackPop, OperandNone},
	OpCastFieldObject: {"CastFieldObject", TypeObject, OperandNone},
	OpCastBool:        {"CastBool", TypeCast, OperandNone},
	OpBoolNot:         {"BoolNot", TypeCast, OperandNone},
	OpBoolComplement:  {"BoolComplement", TypeCast, OperandNone},
	OpJumpOnFalse:     {"JumpOnFalse", TypeJumpCondition, OperandInt16},
	OpJumpOnTrue:      {"JumpOnTrue", TypeJumpCondition, OperandInt16},
	OpJumpOnFalseExpr: {"JumpOnFalseExpr", TypeJumpExpression, OperandInt16},
	OpJumpOnTrueExpr:  {"JumpOnTrueExpr", TypeJumpExpression, OperandInt16},
	OpJump:            {"Jump", TypeJump, OperandInt16},
	OpJumpBack:        {"JumpBack", TypeJump, OperandInt16},

	OpInc:                  {"Inc", TypeSingleOperand, OperandNone},
	OpDec:                  {"Dec", TypeSingleOperand, OperandNone},
	OpBitOr:                {"Bit_Or", TypeDoubleOperand, OperandNone},
	OpBitXor:               {"Bit_Xor", TypeDoubleOperand, OperandNone},
	OpBitAnd:               {"Bit_And", TypeDoubleOperand, OperandNone},
	OpEqual:                {"Equal", TypeComparison, OperandNone},
	OpNotEqual:             {"NotEqual", TypeComparison, OperandNone},
	OpLessThan:             {"LessThan", TypeComparison, OperandNone},
	OpGreaterThan:          {"GreaterThan", TypeComparison, OperandNone},
	OpLessThanOrEqualTo:    {"LessThanOrEqualTo", TypeComparison, OperandNone},
	OpGreaterThanOrEqualTo: {"GreaterThanOrEqualTo", TypeComparison, OperandNone},
	OpShiftLeft:            {"ShiftLeft", TypeDoubleOperand, OperandNone},
	OpShiftRight:           {"ShiftRight", TypeDoubleOperand, OperandNone},
	OpPlus:                 {"Plus", TypeDoubleOperand, OperandNone},
	OpMinus:                {"Minus", TypeDoubleOperand, OperandNone},
	OpMultiply:             {"Multiply", TypeDoubleOperand, OperandNone},
	OpDivide:               {"Divide", TypeDoubleOperand, OperandNone},
	OpModulus:              {"Modulus", TypeDoubleOperand, OperandNone},
	OpSizeOf:               {"SizeOf", TypeSizeOf, OperandNone},

	OpWaitTillMatch: {"WaitTillMatch", TypeNotification, OperandUInt8},
	OpWaitTill:      {"WaitTill", TypeNotification, OperandNone},
	OpNotify:        {"Notify", TypeNotification, OperandNone},
	OpEndOn:         {"EndOn", TypeNotification, OperandNone},
	OpVoidCodePos:   {"VoidCodePos", TypeNone, OperandNone},
	OpSwitch:        {"Switch", TypeSwitch, OperandInt32},
	OpEndSwitch:     {"EndSwitch", TypeSwitchCases, OperandSwitchEnd},

	OpVector:            {"Vector", TypeStackPush, OperandNone},
	OpGetHash:           {"GetHash", TypeStackPush, OperandHash},
	OpRealWait:          {"RealWait", TypeCall, OperandNone},
	OpVectorConstant:    {"VectorConstant", TypeStackPush, OperandVectorFlags},
	OpIsDefined:         {"IsDefined", TypeCall, OperandNone},
	OpVectorScale:       {"VectorScale", TypeCall, OperandNone},
	OpAnglesToUp:        {"AnglesToUp", TypeCall, OperandNone},
	OpAnglesToRight:     {"AnglesToRight", TypeCall, OperandNone},
	OpAnglesToForward:   {"AnglesToForward", TypeCall, OperandNone},
	OpAngleClamp180:     {"AngleClamp180", TypeCall, OperandNone},
	OpVectorToAngles:    {"VectorToAngles", TypeCall, OperandNone},
	OpAbs:               {"Abs", TypeCall, OperandNone},
	OpGetTime:           {"GetTime", TypeCall, OperandNone},
	OpGetDvar:           {"GetDvar", TypeCall, OperandNone},
	OpGetDvarInt:        {"GetDvarInt", TypeCall, OperandNone},
	OpGetDvarFloat:      {"GetDvarFloat", TypeCall, OperandNone},
	OpGetDvarVector:     {"GetDvarVector", TypeCall, OperandNone},
	OpGetDvarColorRed:   {"GetDvarColorRed", TypeCall, OperandNone},
	OpGetDvarColorGreen: {"GetDvarColorGreen", TypeCall, OperandNone},
	OpGetDvarColorBlue:  {"GetDvarColorBlue", TypeCall, OperandNone},
	OpGetDvarColorAlpha: {"GetDvarColorAlpha", TypeCall, OperandNone},
	OpFirstArrayKey:     {"FirstArrayKey", TypeCall, OperandNone},
	OpNextArrayKey:      {"NextArrayKey", TypeCall, OperandNone},
	OpProfileStart:      {"ProfileStart", TypeNone, OperandNone},
	OpProfileStop:       {"ProfileStop", TypeNone, OperandNone},
	OpSafeDecTop:        {"SafeDecTop", TypeNone, OperandNone},

	OpNop:                  {"Nop", TypeNone, OperandNone},
	OpAbort:                {"Abort", TypeNone, OperandNone},
	OpObj:                  {"Obj", TypeNone, OperandNone},
	OpThreadObject:         {"ThreadObject", TypeNone, OperandNone},
	OpEvalLocalVariable:    {"EvalLocalVariable", TypeNone, OperandNone},
	OpEvalLocalVariableRef: {"EvalLocalVariableRef", TypeNone, OperandNone},
	OpDevblockBegin:        {"DevblockBegin", TypeNone, OperandUInt16},
	OpDevblockEnd:          {"DevblockEnd", TypeNone, OperandUInt16},
	OpBreakpoint:           {"Breakpoint", TypeNone, OperandNone},
	OpAutoBreakpoint:       {"AutoBreakpoint", TypeNone, OperandNone},
	OpErrorBreakpoint:      {"ErrorBreakpoint", TypeNone, OperandNone},
	OpWatchBreakpoint:      {"WatchBreakpoint", TypeNone, OperandNone},
	OpNotifyBreakpoint:     {"NotifyBreakpoint", TypeNone, OperandNone},

	OpGetObjectType:             {"GetObjectType", TypeStackPush, OperandVariableName},
	OpWaitRealTime:              {"WaitRealTime", TypeCall, OperandNone},
	OpGetWorldObject:            {"GetWorldObject", TypeObject, OperandNone},
	OpGetClassesObject:          {"GetClassesObject", TypeObject, OperandNone},
	OpClassFunctionCall:         {"ClassFunctionCall", TypeCall, OperandCall},
	OpBitNot:                    {"Bit_Not", TypeSingleOperand, OperandNone},
	OpGetWorld:                  {"GetWorld", TypeStackPush, OperandNone},
	OpEvalLevelFieldVariable:    {"EvalLevelFieldVariable", TypeVariable, OperandVariableName},
	OpEvalLevelFieldVariableRef: {"EvalLevelFieldVariableRef", TypeVariableReference, OperandVariableName},
	OpEvalSelfFieldVariable:     {"EvalSelfFieldVariable", TypeVariable, OperandVariableName},
	OpEvalSelfFieldVariableRef:  {"EvalSelfFieldVariableRef", TypeVariableReference, OperandVariableName},
	OpSuperEqual:                {"SuperEqual", TypeComparison, OperandNone},
	OpSuperNotEqual:             {"SuperNotEqual", TypeComparison, OperandNone},

	OpGetGlobalObject:    {"GetGlobalObject", TypeObject, OperandUInt16},
	OpGetGlobalObjectRef: {"GetGlobalObjectRef", TypeObjectReference, OperandUInt16},
}

// opByName is the reverse of opInfoTable, keyed by name.
var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opInfoTable))
	for op, info := range opInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpInfo returns metadata for an operation.
func GetOpInfo(op Op) OpInfo {
	if info, ok := opInfoTable[op]; ok {
		return info
	}
	return OpInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Parse returns the operation with the given name.
func Parse(name string) (Op, error) {
	if op, ok := opByName[name]; ok {
		return op, nil
	}
	return OpInvalid, fmt.Errorf("%w: %q", ErrUnknownOpcode, name)
}

// String returns the name of an operation.
func (op Op) String() string {
	return GetOpInfo(op).Name
}

// Valid reports whether op is a defined operation.
func (op Op) Valid() bool {
	_, ok := opInfoTable[op]
	return ok
}

// Operand returns the operand layout of op.
func (op Op) Operand() OperandType {
	return GetOpInfo(op).Operand
}

// HasOperand reports whether op is followed by operand bytes.
func (op Op) HasOperand() bool {
	return op.Operand() != OperandNone
}

// IsJump returns true for the forward branch family.
func (op Op) IsJump() bool {
	switch op {
	case OpJump, OpJumpOnFalse, OpJumpOnTrue, OpJumpOnFalseExpr, OpJumpOnTrueExpr:
		return true
	}
	return false
}

// IsCall returns true for direct script calls.
func (op Op) IsCall() bool {
	return op >= OpScriptFunctionCall && op <= OpScriptMethodThreadCallPointer && (op-OpScriptFunctionCall)%2 == 0
}

// IsCallPointer returns true for calls through a function pointer on the stack.
func (op Op) IsCallPointer() bool {
	return op >= OpScriptFunctionCallPointer && op <= OpScriptMethodThreadCallPointer && (op-OpScriptFunctionCallPointer)%2 == 0
}

// AllOps returns all defined operations in ascending order.
func AllOps() []Op {
	ops := make([]Op, 0, len(opInfoTable))
	for op := Op(0); op < OpInvalid; op++ {
		if _, ok := opInfoTable[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// OpCount returns the number of defined operations.
func OpCount() int {
	return len(opInfoTable)
}
