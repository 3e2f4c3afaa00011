package utils

// Ternary elige entre dos valores sin un if de cuatro líneas.
func Ternary[T any](cond bool, ifTrue, ifFalse T) T {
	if cond {
		return ifTrue
	}
	return ifFalse
}
