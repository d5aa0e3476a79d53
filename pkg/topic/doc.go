// Package topic encodes and decodes the topic scheme used by RTSM nodes.
//
// Three topic shapes exist, with segments separated by "/":
//
//	{model}             shared topic, every participant of a model
//	{model}/{deviceID}  directed topic, one device within a model
//	online/{deviceID}   retained presence topic
//
// Model names and device identifiers are single segments: they must not
// contain the separator or the MQTT wildcard characters. Validation happens
// when a model is registered, so dispatch never sees an ambiguous topic.
package topic
