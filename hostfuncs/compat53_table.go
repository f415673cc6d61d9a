package hostfuncs

// Compat53TableModule adds the Lua 5.3 table functions missing from Lua 5.1.
// They are written in Lua so they respect metamethods and run at the speed
// of the surrounding code.
var Compat53TableModule = OpenFunc(openCompat53Table)

const compat53TableChunk = `
local M = ...
local select, type, error = select, type, error
local unpack = unpack or table.unpack

function M.pack(...)
  return { n = select("#", ...), ... }
end

function M.unpack(t, i, j)
  return unpack(t, i or 1, j or #t)
end

function M.move(a1, f, e, t, a2)
  a2 = a2 or a1
  if type(a1) ~= "table" then
    error("bad argument #1 to 'move' (table expected, got " .. type(a1) .. ")", 2)
  end
  if type(a2) ~= "table" then
    error("bad argument #5 to 'move' (table expected, got " .. type(a2) .. ")", 2)
  end
  if e >= f then
    if t > e or t <= f or a1 ~= a2 then
      for i = 0, e - f do
        a2[t + i] = a1[f + i]
      end
    else
      for i = e - f, 0, -1 do
        a2[t + i] = a1[f + i]
      end
    end
  end
  return a2
end
`

func openCompat53Table(ns Namespace) error {
	return ns.Eval(compat53TableChunk)
}
