// Package keys define el modelo de datos de las claves de un member:
// niveles de confianza, algoritmos, el par de claves inmutable y su vista pública.
//
// También define los errores que el resto del módulo usa para señalizar
// claves inexistentes, expiradas o firmas inválidas. Todos se comparan con errors.Is.
package keys
